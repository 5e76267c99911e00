package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/usecase"
	xhttp "FxSignal/pkg/http"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/util"
)

// Signals returns the latest signals document, or a history day when date
// is given, filtered by symbol, tf and status.
func (h *Handler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	key := fmt.Sprintf("signals:%s:%s:%s:%s", req.Date, symbol, req.TF, req.Status)

	return h.cached(c, key, func(ctx context.Context) (interface{}, error) {
		var (
			doc models.SignalsDocument
			err error
		)
		if req.Date != "" {
			doc, err = h.reader.ReadHistory(ctx, req.Date)
		} else {
			doc, err = h.reader.ReadSignals(ctx)
		}
		if err != nil {
			return nil, err
		}
		doc.Signals = filterSignals(doc.Signals, symbol, req.TF, models.Status(req.Status))
		return doc, nil
	})
}

func filterSignals(in []models.SignalDecision, symbol, tf string, status models.Status) []models.SignalDecision {
	out := make([]models.SignalDecision, 0, len(in))
	for _, s := range in {
		if symbol != "" && s.Symbol != symbol {
			continue
		}
		if tf != "" && s.Timeframe != tf {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	return out
}

// LatestSignals reads recent decisions from the decision store.
func (h *Handler) LatestSignals(c echo.Context) error {
	req := &models.LatestSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.decisions == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("decision store not configured"))
	}
	symbol := strings.ToUpper(req.Symbol)
	key := fmt.Sprintf("signals-latest:%s:%s:%d", symbol, req.TF, req.Limit)
	return h.cached(c, key, func(ctx context.Context) (interface{}, error) {
		rows, err := h.decisions.LatestDecisions(ctx, symbol, domrepo.Timeframe(req.TF), req.Limit)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []models.SignalDecision{}
		}
		return rows, nil
	})
}

func (h *Handler) Meta(c echo.Context) error {
	return h.cached(c, "meta", func(ctx context.Context) (interface{}, error) {
		return h.reader.ReadMetaSignal(ctx)
	})
}

// Backtest returns the latest report with at most limit trades. When no
// report file exists the report store is consulted.
func (h *Handler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := fmt.Sprintf("backtest:%d", req.Limit)
	return h.cached(c, key, func(ctx context.Context) (interface{}, error) {
		rep, err := h.reader.ReadBacktestReport(ctx)
		if err != nil && h.reports != nil && isMissing(err) {
			stored, serr := h.reports.LatestBacktestReport(ctx)
			if serr != nil {
				return nil, serr
			}
			if stored == nil {
				return nil, err
			}
			rep, err = *stored, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rep.TradeLog) > req.Limit {
			rep.TradeLog = rep.TradeLog[:req.Limit]
		}
		return rep, nil
	})
}

// Prices is served straight from the in-memory book.
func (h *Handler) Prices(c echo.Context) error {
	req := &models.PricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := make([]string, len(req.Symbols))
	for i, s := range req.Symbols {
		symbols[i] = strings.ToUpper(s)
	}
	return xhttp.SuccessResponse(c, h.book.Snapshot(symbols...))
}

func (h *Handler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.bars == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("bar store not configured"))
	}
	p := usecase.GetBarsParams{
		Symbol:    strings.ToUpper(req.Symbol),
		Timeframe: domrepo.Timeframe(req.TF),
		Limit:     req.Limit,
	}
	for _, b := range []struct {
		name, raw string
		dst       *time.Time
	}{{"from", req.From, &p.From}, {"to", req.To, &p.To}} {
		if b.raw == "" {
			continue
		}
		t, ok := util.ParseTime(b.raw)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid %s: %q", b.name, b.raw))
		}
		*b.dst = t
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be <= to"))
	}

	res, err := h.bars.GetBars(c.Request().Context(), p)
	if err != nil {
		h.logFailure(c, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Cycle runs inference, then meta ranking unless skipped, and drops cached
// signal and meta responses. A ranking failure does not fail the request.
func (h *Handler) Cycle(c echo.Context) error {
	req := &models.CycleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.cycle == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("inference pipeline not configured"))
	}
	ctx := c.Request().Context()

	doc, err := h.cycle.Run(ctx, req.Threshold)
	if err != nil {
		h.logFailure(c, err)
		return xhttp.AppErrorResponse(c, err)
	}
	res := models.CycleResult{RunID: doc.RunID, Signals: len(doc.Signals)}
	for _, s := range doc.Signals {
		if s.Active() {
			res.Active++
		}
	}

	if !req.SkipMeta && h.ranking != nil {
		ms, err := h.ranking.Run(ctx, doc)
		if err != nil {
			res.MetaError = err.Error()
			if h.l != nil {
				h.l.Warn("api.cycle.meta_failed", applogger.String("run_id", doc.RunID), applogger.Error(err))
			}
		} else {
			res.Meta = ms
		}
	}

	h.invalidate(ctx, "signals*", "meta*")
	return xhttp.SuccessResponse(c, res)
}

func isMissing(err error) bool {
	return errors.Is(err, models.ErrMissingArtifact)
}
