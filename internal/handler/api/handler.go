package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "FxSignal/internal/domain/repository"
	icache "FxSignal/internal/service/cache"
	"FxSignal/internal/service/pricebook"
	"FxSignal/internal/service/ratelimit"
	"FxSignal/internal/usecase"
	xhttp "FxSignal/pkg/http"
	applogger "FxSignal/pkg/logger"
)

// Handler serves the read API over the output documents plus the manual
// cycle trigger.
type Handler struct {
	reader    domrepo.OutputReader
	decisions domrepo.DecisionStore
	reports   domrepo.ReportStore
	book      *pricebook.Book
	bars      *usecase.BarsUseCase
	cycle     *usecase.InferenceCycle
	ranking   *usecase.MetaRanking

	cache   icache.BytesCache
	ttl     time.Duration
	limiter *ratelimit.Limiter
	l       *applogger.Logger
}

func NewHandler(reader domrepo.OutputReader, book *pricebook.Book, bars *usecase.BarsUseCase) *Handler {
	if book == nil {
		book = pricebook.New()
	}
	return &Handler{reader: reader, book: book, bars: bars, ttl: 30 * time.Second}
}

// SetStores attaches the optional decision and report stores.
func (h *Handler) SetStores(decisions domrepo.DecisionStore, reports domrepo.ReportStore) {
	h.decisions = decisions
	h.reports = reports
}

// SetPipeline enables POST /api/cycle.
func (h *Handler) SetPipeline(cycle *usecase.InferenceCycle, ranking *usecase.MetaRanking) {
	h.cycle = cycle
	h.ranking = ranking
}

func (h *Handler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.ttl = ttl
	}
}

func (h *Handler) SetLimiter(l *ratelimit.Limiter) { h.limiter = l }

func (h *Handler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.GET("/signals", h.Signals)
	g.GET("/signals/latest", h.LatestSignals)
	g.GET("/meta", h.Meta)
	g.GET("/backtest", h.Backtest)
	g.GET("/prices", h.Prices)
	g.GET("/bars", h.Bars)
	g.POST("/cycle", h.Cycle)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimit applies a token bucket per client address and route.
func (h *Handler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		key := c.RealIP() + ":" + c.Path()
		if !h.limiter.Allow(key) {
			if h.l != nil {
				h.l.Warn("api.rate_limited", applogger.String("key", key))
			}
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
		}
		return next(c)
	}
}

// cached serves key from the bytes cache or fills it from load. Only
// successful envelopes are cached.
func (h *Handler) cached(c echo.Context, key string, load func(ctx context.Context) (interface{}, error)) error {
	ctx := c.Request().Context()
	if h.cache != nil {
		b, ok, err := h.cache.GetBytes(ctx, key)
		if err != nil {
			if h.l != nil {
				h.l.Warn("api.cache_get_error", applogger.String("key", key), applogger.Error(err))
			}
		} else if ok {
			c.Response().Header().Set("X-Cache", "HIT")
			return xhttp.RawJSONResponse(c, b)
		}
	}

	data, err := load(ctx)
	if err != nil {
		h.logFailure(c, err)
		return xhttp.AppErrorResponse(c, err)
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: data})
	if err != nil {
		h.logFailure(c, err)
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(ctx, key, b, h.ttl); err != nil && h.l != nil {
			h.l.Warn("api.cache_set_error", applogger.String("key", key), applogger.Error(err))
		}
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return xhttp.RawJSONResponse(c, b)
}

func (h *Handler) invalidate(ctx context.Context, patterns ...string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, patterns...); err != nil && h.l != nil {
		h.l.Warn("api.cache_invalidate_error", applogger.Strings("patterns", patterns), applogger.Error(err))
	}
}

func (h *Handler) logFailure(c echo.Context, err error) {
	if h.l == nil {
		return
	}
	if appErr := xhttp.FromError(err); appErr.Status >= http.StatusInternalServerError {
		h.l.Error("api.request_failed", applogger.String("route", c.Path()), applogger.Error(err))
		return
	}
	h.l.Debug("api.request_rejected", applogger.String("route", c.Path()), applogger.Error(err))
}
