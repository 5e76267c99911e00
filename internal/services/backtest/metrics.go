package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDays annualizes per-trade statistics.
const TradingDays = 252

// Every ratio here reports 0 on degenerate input (empty series, zero spread,
// zero drawdown) so one thin history cannot break a batch.

// Sharpe is sqrt(252) * mean / sample std of returns.
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, sd := stat.MeanStdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return math.Sqrt(TradingDays) * mean / sd
}

// Sortino shares Sharpe's numerator but divides by the spread of the
// negative returns only.
func Sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	sd := stat.StdDev(downside, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return math.Sqrt(TradingDays) * stat.Mean(returns, nil) / sd
}

// MaxDrawdown is the largest fall from a running peak, as a fraction of that
// peak. The peak is seeded with the first equity value.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak, worst := equity[0], 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// Calmar is the annualized mean return over max drawdown.
func Calmar(returns []float64, maxDD float64) float64 {
	if maxDD == 0 || len(returns) == 0 {
		return 0
	}
	return stat.Mean(returns, nil) * TradingDays / maxDD
}

// WinRate is the fraction of trades with positive pnl.
func WinRate(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	wins := 0
	for _, p := range pnls {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnls))
}

// ProfitFactor is gross profit over gross loss; +Inf when there are profits
// and no losses.
func ProfitFactor(pnls []float64) float64 {
	var gain, loss float64
	for _, p := range pnls {
		if p > 0 {
			gain += p
		} else if p < 0 {
			loss -= p
		}
	}
	if loss == 0 {
		if gain > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gain / loss
}

// Expectancy is the mean pnl per trade.
func Expectancy(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	return stat.Mean(pnls, nil)
}

// RiskReward is the mean win over the absolute mean loss.
func RiskReward(pnls []float64) float64 {
	var wins, losses []float64
	for _, p := range pnls {
		if p > 0 {
			wins = append(wins, p)
		} else if p < 0 {
			losses = append(losses, p)
		}
	}
	if len(wins) == 0 || len(losses) == 0 {
		return 0
	}
	avgLoss := math.Abs(stat.Mean(losses, nil))
	if avgLoss == 0 {
		return 0
	}
	return stat.Mean(wins, nil) / avgLoss
}
