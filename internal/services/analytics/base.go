package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"FxSignal/internal/service/ratelimit"
	"FxSignal/pkg/config"
	xhttp "FxSignal/pkg/http"
	applogger "FxSignal/pkg/logger"
)

// CallObserver records model-server round trips.
type CallObserver interface {
	ObserveModelCall(path string, seconds float64, ok bool)
}

// limiterKey is the single token bucket every model-server call draws from.
const limiterKey = "model-server"

// HTTPServiceBase is shared by every model-server client: one HTTP client,
// one circuit breaker and one token bucket per process.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	obs     CallObserver
	l       *applogger.Logger
}

func NewHTTPServiceBase(cfg *config.Config) *HTTPServiceBase {
	ms := cfg.ModelServer
	timeout := ms.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxFailures := ms.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:     "model-server",
		Interval: time.Minute,
		Timeout:  ms.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
	}
	b := &HTTPServiceBase{
		baseURL: ms.URL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent(cfg.ModelServer.UserAgent)),
		limiter: ratelimit.New(ms.RatePerSecond, ms.Burst),
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		if b.l != nil {
			b.l.Warn("analytics.breaker", applogger.String("from", from.String()), applogger.String("to", to.String()))
		}
	}
	b.breaker = gobreaker.NewCircuitBreaker(st)
	return b
}

func (b *HTTPServiceBase) SetLogger(l *applogger.Logger) { b.l = l }

func (b *HTTPServiceBase) SetObserver(o CallObserver) { b.obs = o }

// Configured reports whether a model server URL is set.
func (b *HTTPServiceBase) Configured() bool { return b != nil && b.baseURL != "" }

// PostJSON posts payload to path under baseURL and decodes the JSON reply into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if !b.Configured() {
		return fmt.Errorf("model server url not configured")
	}
	if err := b.limiter.Wait(ctx, limiterKey); err != nil {
		return fmt.Errorf("rate limit %s: %w", path, err)
	}
	start := time.Now()
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     b.baseURL + path,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    payload,
		}, dest)
	})
	if b.obs != nil {
		b.obs.ObserveModelCall(path, time.Since(start).Seconds(), err == nil)
	}
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures with a linear backoff. An
// open breaker ends the loop immediately.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
