package backtest

import (
	"time"

	"FxSignal/internal/domain/models"
)

// ComputeMetrics derives the metrics block. Returns are per-trade pnl over
// the initial balance; percentages are scaled to 0-100.
func ComputeMetrics(equity []float64, pnls []float64, initialBalance float64) models.BacktestMetrics {
	returns := make([]float64, len(pnls))
	if initialBalance != 0 {
		for i, p := range pnls {
			returns[i] = p / initialBalance
		}
	}
	maxDD := MaxDrawdown(equity)
	return models.BacktestMetrics{
		SharpeRatio:        Sharpe(returns),
		SortinoRatio:       Sortino(returns),
		MaxDrawdownPct:     maxDD * 100,
		CalmarRatio:        Calmar(returns, maxDD),
		WinRatePct:         WinRate(pnls) * 100,
		ProfitFactor:       models.Ratio(ProfitFactor(pnls)),
		Expectancy:         Expectancy(pnls),
		AvgRiskRewardRatio: RiskReward(pnls),
	}
}

// BuildReport summarizes a simulation, keeping only the trailing logLimit
// trades.
func BuildReport(res Result, cfg Config, logLimit int, now time.Time) models.BacktestReport {
	pnls := res.PnLs()
	final := cfg.InitialBalance
	if len(res.Equity) > 0 {
		final = res.Equity[len(res.Equity)-1]
	}
	var wins, losses int
	for _, p := range pnls {
		switch {
		case p > 0:
			wins++
		case p < 0:
			losses++
		}
	}
	totalReturn := 0.0
	if cfg.InitialBalance != 0 {
		totalReturn = (final - cfg.InitialBalance) / cfg.InitialBalance * 100
	}
	log := res.Trades
	if logLimit >= 0 && len(log) > logLimit {
		log = log[len(log)-logLimit:]
	}
	return models.BacktestReport{
		GeneratedAt:    now.UTC(),
		InitialBalance: cfg.InitialBalance,
		FinalBalance:   final,
		TotalReturnPct: totalReturn,
		TotalTrades:    len(pnls),
		WinningTrades:  wins,
		LosingTrades:   losses,
		Days:           res.Days,
		Metrics:        ComputeMetrics(res.Equity, pnls, cfg.InitialBalance),
		TradeLog:       append([]models.Trade(nil), log...),
	}
}
