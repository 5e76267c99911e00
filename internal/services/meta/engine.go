package meta

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/services/signal"
	applogger "FxSignal/pkg/logger"
)

// Engine ranks currencies by their predicted return and recommends going long
// the strongest against the weakest.
type Engine struct {
	models map[string]CurrencyModel
	levels signal.Params
	now    func() time.Time
	l      *applogger.Logger
}

func NewEngine(m map[string]CurrencyModel, levels signal.Params) *Engine {
	return &Engine{models: m, levels: levels, now: time.Now}
}

// SetLogger injects a structured logger.
func (e *Engine) SetLogger(l *applogger.Logger) { e.l = l }

// Currencies returns the currencies with a loaded model, sorted.
func (e *Engine) Currencies() []string {
	out := make([]string, 0, len(e.models))
	for c := range e.models {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Rank predicts every currency from rec, orders them descending and attaches
// trade levels taken from the strongest currency's USD cross when a signal for
// it exists in signals. A missing feature aborts the whole ranking.
func (e *Engine) Rank(ctx context.Context, rec models.FlatFeatureRecord, signals []models.SignalDecision) (*models.MetaSignal, error) {
	if len(e.models) < 2 {
		return nil, fmt.Errorf("%w: ranking needs at least 2 currency models, have %d", models.ErrInsufficientData, len(e.models))
	}

	scores := make([]models.CurrencyScore, 0, len(e.models))
	for _, cur := range e.Currencies() {
		cm := e.models[cur]
		x, err := Project(rec, cm.Features)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				se.Currency = cur
			}
			return nil, err
		}
		pred, err := cm.Model.Predict(ctx, x)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", cur, err)
		}
		scores = append(scores, models.CurrencyScore{Currency: cur, Prediction: pred})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Prediction > scores[j].Prediction })

	strongest, weakest := scores[0], scores[len(scores)-1]
	out := &models.MetaSignal{
		GeneratedAt:         e.now().UTC(),
		StrongestCurrency:   strongest.Currency,
		StrongestPrediction: strongest.Prediction,
		WeakestCurrency:     weakest.Currency,
		WeakestPrediction:   weakest.Prediction,
		RecommendedPair:     strongest.Currency + weakest.Currency,
		Ranking:             scores,
	}

	if src, ok := LevelSource(strongest.Currency, signals); ok {
		lv := signal.BuildTrade(models.SideLong, src.Price, src.ATR, e.levels, pairPrecision(out.RecommendedPair), 0)
		out.TradeLevels = &lv
		if e.l != nil {
			e.l.Debug("meta.levels", applogger.String("source", src.Symbol), applogger.String("tf", src.Timeframe))
		}
	} else if e.l != nil {
		e.l.Warn("meta.levels_unavailable", applogger.String("currency", strongest.Currency))
	}
	return out, nil
}

// LevelSource finds the signal used to price a recommendation: the most
// granular timeframe of {CUR}USD, or of USD{CUR} when only the inverse cross
// is present.
func LevelSource(currency string, signals []models.SignalDecision) (models.SignalDecision, bool) {
	for _, sym := range []string{currency + "USD", "USD" + currency} {
		var tfs []string
		bySym := map[string]models.SignalDecision{}
		for _, s := range signals {
			if s.Symbol == sym {
				tfs = append(tfs, s.Timeframe)
				bySym[s.Timeframe] = s
			}
		}
		if tf, ok := domrepo.MostGranular(tfs); ok {
			return bySym[string(tf)], true
		}
	}
	return models.SignalDecision{}, false
}

// pairPrecision follows the recommended pair: any yen leg quotes at 3.
func pairPrecision(pair string) int32 {
	if strings.Contains(strings.ToUpper(pair), "JPY") {
		return 3
	}
	return 5
}
