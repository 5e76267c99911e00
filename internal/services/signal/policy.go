package signal

import (
	"strings"
	"time"

	"FxSignal/internal/domain/models"
)

const (
	CommentActive   = "Filters passed, signal is active."
	commentWaiting  = "Waiting: "
	issueConfidence = "low confidence"
	issueTrend      = "trend against signal"
)

// Input is everything one decision needs. Decisions carry no state between
// cycles.
type Input struct {
	Symbol        string
	Timeframe     string
	Time          time.Time
	Probabilities models.ProbabilityVector
	TrendUp       bool
	Threshold     float64
	Price         float64
	Volatility    float64
	Params        Params
}

// Decide picks the side (ties go LONG), applies the confidence and trend
// filters and builds both trade plans. The no-trade score is carried through
// but never consulted.
func Decide(in Input) models.SignalDecision {
	pv := in.Probabilities
	side := models.SideShort
	conf, altConf := pv.Short, pv.Long
	if pv.Long >= pv.Short {
		side = models.SideLong
		conf, altConf = pv.Long, pv.Short
	}

	probPass := conf >= in.Threshold
	trendPass := (side == models.SideLong && in.TrendUp) || (side == models.SideShort && !in.TrendUp)

	status := models.StatusWatchlist
	if probPass && trendPass {
		status = models.StatusActive
	}

	prec := PrecisionFor(in.Symbol)
	return models.SignalDecision{
		Symbol:          in.Symbol,
		Timeframe:       in.Timeframe,
		Time:            in.Time,
		Price:           Round(in.Price, prec),
		ATR:             Round(in.Volatility, prec),
		Side:            side,
		Status:          status,
		Confidence:      conf,
		ProbabilityPass: probPass,
		TrendPass:       trendPass,
		Comment:         comment(probPass, trendPass),
		Primary:         BuildTrade(side, in.Price, in.Volatility, in.Params, prec, conf),
		Alternative:     BuildTrade(side.Opposite(), in.Price, in.Volatility, in.Params, prec, altConf),
		TrendUp:         in.TrendUp,
		Probabilities:   pv,
	}
}

func comment(probPass, trendPass bool) string {
	if probPass && trendPass {
		return CommentActive
	}
	issues := make([]string, 0, 2)
	if !probPass {
		issues = append(issues, issueConfidence)
	}
	if !trendPass {
		issues = append(issues, issueTrend)
	}
	return commentWaiting + strings.Join(issues, ", ")
}
