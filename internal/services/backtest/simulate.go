package backtest

import (
	"math/rand"
	"sort"

	"FxSignal/internal/domain/models"
)

// Day is one replayed date with the decisions produced for it.
type Day struct {
	Date    string
	Signals []models.SignalDecision
}

type Config struct {
	InitialBalance float64
	RiskPerTrade   float64
	RewardRatio    float64
}

// OutcomeFunc decides whether an ACTIVE signal taken on day would have won.
type OutcomeFunc func(day string, s models.SignalDecision) bool

// Result is the ledger of one simulation. Equity starts at the initial
// balance and gains one point per trade.
type Result struct {
	Equity []float64
	Trades []models.Trade
	Days   int
}

// PnLs returns the pnl column of the ledger.
func (r Result) PnLs() []float64 {
	out := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.PnL
	}
	return out
}

// Simulate folds days in date order. Each ACTIVE signal risks a fixed share
// of the running balance; a win pays RewardRatio times the risk. Days must be
// applied sequentially because every trade sizes off the balance left by the
// previous one.
func Simulate(days []Day, cfg Config, outcome OutcomeFunc) Result {
	ordered := make([]Day, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })

	balance := cfg.InitialBalance
	res := Result{Equity: []float64{balance}, Days: len(ordered)}
	for _, d := range ordered {
		for _, s := range activeInOrder(d.Signals) {
			risk := balance * cfg.RiskPerTrade
			pnl := -risk
			if outcome(d.Date, s) {
				pnl = risk * cfg.RewardRatio
			}
			balance += pnl
			res.Equity = append(res.Equity, balance)
			res.Trades = append(res.Trades, models.Trade{
				Date:         d.Date,
				Symbol:       s.Symbol,
				Timeframe:    s.Timeframe,
				Side:         s.Side,
				Confidence:   s.Confidence,
				PnL:          pnl,
				BalanceAfter: balance,
			})
		}
	}
	return res
}

func activeInOrder(signals []models.SignalDecision) []models.SignalDecision {
	out := make([]models.SignalDecision, 0, len(signals))
	for _, s := range signals {
		if s.Active() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

// ConfidenceOutcome wins with probability equal to the signal confidence,
// drawn from a seeded source so runs are reproducible.
func ConfidenceOutcome(seed int64) OutcomeFunc {
	rng := rand.New(rand.NewSource(seed))
	return func(_ string, s models.SignalDecision) bool {
		return rng.Float64() < s.Confidence
	}
}

// PathOutcome walks bars that follow the entry and reports whether TP1 was
// touched before SL. A bar touching both counts as a loss. resolved is false
// if neither level was reached.
func PathOutcome(levels models.TradeLevels, after []models.PriceBar) (win, resolved bool) {
	for _, b := range after {
		var hitSL, hitTP bool
		if levels.Side == models.SideShort {
			hitSL, hitTP = b.High >= levels.SL, b.Low <= levels.TP1
		} else {
			hitSL, hitTP = b.Low <= levels.SL, b.High >= levels.TP1
		}
		switch {
		case hitSL:
			return false, true
		case hitTP:
			return true, true
		}
	}
	return false, false
}
