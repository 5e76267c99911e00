package models

import (
	"encoding/json"
	"math"
	"time"
)

// Trade is one simulated fill in the backtest ledger.
type Trade struct {
	Date         string  `json:"date" db:"date"`
	Symbol       string  `json:"symbol" db:"symbol"`
	Timeframe    string  `json:"tf" db:"tf"`
	Side         Side    `json:"side" db:"side"`
	Confidence   float64 `json:"confidence" db:"confidence"`
	PnL          float64 `json:"pnl" db:"pnl"`
	BalanceAfter float64 `json:"balance_after" db:"balance_after"`
}

// Ratio is a float that survives JSON when it is +Inf (profit factor with no
// losing trades), encoded as the string "Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"Infinity"`), nil
	}
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), -1) {
		return []byte("0"), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == `"Infinity"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// BacktestMetrics is the metrics block of the report; percentages are 0-100.
type BacktestMetrics struct {
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	CalmarRatio        float64 `json:"calmar_ratio"`
	WinRatePct         float64 `json:"win_rate_pct"`
	ProfitFactor       Ratio   `json:"profit_factor"`
	Expectancy         float64 `json:"expectancy"`
	AvgRiskRewardRatio float64 `json:"avg_risk_reward_ratio"`
}

type BacktestReport struct {
	RunID          string          `json:"run_id,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	InitialBalance float64         `json:"initial_balance"`
	FinalBalance   float64         `json:"final_balance"`
	TotalReturnPct float64         `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	Days           int             `json:"days"`
	Metrics        BacktestMetrics `json:"metrics"`
	TradeLog       []Trade         `json:"trade_log"`
}
