package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
)

// IngestBuffer sits between the bars consumer and the bar store. It rejects
// malformed bars, drops bars not newer than the last one accepted for their
// series, and holds bars in a bounded buffer while the store is failing.
type IngestBuffer struct {
	next    domrepo.BarWriter
	metrics domrepo.Metrics
	l       *applogger.Logger

	bufCh      chan models.SymbolBar
	stopCh     chan struct{}
	done       chan struct{}
	backoffMin time.Duration
	backoffMax time.Duration

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time
}

type IngestOption func(*IngestBuffer)

// WithBufferSize sets how many bars are held while the store is unavailable.
func WithBufferSize(n int) IngestOption {
	return func(b *IngestBuffer) {
		if n > 0 {
			b.bufCh = make(chan models.SymbolBar, n)
		}
	}
}

// WithBackoff bounds the retry delay of the flush loop.
func WithBackoff(min, max time.Duration) IngestOption {
	return func(b *IngestBuffer) {
		if min > 0 && max >= min {
			b.backoffMin, b.backoffMax = min, max
		}
	}
}

func WithLogger(l *applogger.Logger) IngestOption {
	return func(b *IngestBuffer) { b.l = l }
}

func NewIngestBuffer(next domrepo.BarWriter, m domrepo.Metrics, opts ...IngestOption) *IngestBuffer {
	if m == nil {
		m = metrics.Nop{}
	}
	b := &IngestBuffer{
		next:       next,
		metrics:    m,
		bufCh:      make(chan models.SymbolBar, 1000),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the loop that retries buffered bars.
func (b *IngestBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		defer close(b.done)
		backoff := b.backoffMin
		for {
			select {
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			case bar := <-b.bufCh:
				if err := b.next.AppendBars(ctx, []models.SymbolBar{bar}); err != nil {
					b.metrics.RecordError("ingest_flush")
					if backoff < b.backoffMax {
						backoff *= 2
						if backoff > b.backoffMax {
							backoff = b.backoffMax
						}
					}
					b.requeue(bar)
					select {
					case <-time.After(backoff):
					case <-b.stopCh:
						return
					case <-ctx.Done():
						return
					}
					continue
				}
				backoff = b.backoffMin
			}
		}
	}()
}

// Stop ends the flush loop. Bars still buffered are dropped and counted.
func (b *IngestBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	close(b.stopCh)
	<-b.done
	if n := len(b.bufCh); n > 0 && b.l != nil {
		b.l.Warn("ingest.dropped_on_stop", applogger.Int("bars", n))
	}
}

// Pending reports how many bars wait for the store.
func (b *IngestBuffer) Pending() int { return len(b.bufCh) }

// AppendBars forwards accepted bars. When the store fails they are buffered
// and the error is still returned so the consumer can retry or dead-letter.
// A bar counts as seen only once it is stored or buffered.
func (b *IngestBuffer) AppendBars(ctx context.Context, bars []models.SymbolBar) error {
	accepted := make([]models.SymbolBar, 0, len(bars))
	newest := map[string]time.Time{}
	for _, bar := range bars {
		if err := validateBar(bar); err != nil {
			b.metrics.RecordError("ingest_validate")
			return err
		}
		key := seriesKey(bar)
		if last, ok := newest[key]; (ok && !bar.Time.After(last)) || b.stale(bar) {
			b.metrics.RecordError("ingest_stale")
			continue
		}
		newest[key] = bar.Time
		accepted = append(accepted, bar)
	}
	if len(accepted) == 0 {
		return nil
	}

	if err := b.next.AppendBars(ctx, accepted); err != nil {
		b.metrics.RecordError("ingest_store")
		dropped := 0
		for _, bar := range accepted {
			if !b.requeue(bar) {
				dropped++
				continue
			}
			b.mark(bar)
		}
		if dropped > 0 {
			return fmt.Errorf("ingest downstream: %d bars not buffered: %w", dropped, err)
		}
		return fmt.Errorf("ingest downstream: %w", err)
	}
	for _, bar := range accepted {
		b.mark(bar)
	}
	return nil
}

// requeue buffers bar for the flush loop; false when the buffer is full.
func (b *IngestBuffer) requeue(bar models.SymbolBar) bool {
	select {
	case b.bufCh <- bar:
		return true
	default:
		b.metrics.RecordError("ingest_buffer_full")
		if b.l != nil {
			b.l.Warn("ingest.buffer_full", applogger.String("symbol", bar.Symbol), applogger.String("tf", bar.Timeframe))
		}
		return false
	}
}

func seriesKey(bar models.SymbolBar) string { return bar.Symbol + "_" + bar.Timeframe }

// stale reports whether bar is not newer than the last bar seen for its series.
func (b *IngestBuffer) stale(bar models.SymbolBar) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := b.lastSeen[seriesKey(bar)]
	return ok && !bar.Time.After(last)
}

func (b *IngestBuffer) mark(bar models.SymbolBar) {
	key := seriesKey(bar)
	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.lastSeen[key]; !ok || bar.Time.After(last) {
		b.lastSeen[key] = bar.Time
	}
}

func validateBar(bar models.SymbolBar) error {
	switch {
	case bar.Symbol == "":
		return fmt.Errorf("bar symbol empty")
	case bar.Time.IsZero():
		return fmt.Errorf("bar %s time missing", bar.Symbol)
	case bar.Close <= 0 || bar.Open < 0 || bar.Volume < 0:
		return fmt.Errorf("bar %s negative price/volume", bar.Symbol)
	case bar.High > 0 && bar.Low > 0 && bar.High < bar.Low:
		return fmt.Errorf("bar %s high below low", bar.Symbol)
	}
	return nil
}

var _ domrepo.BarWriter = (*IngestBuffer)(nil)
