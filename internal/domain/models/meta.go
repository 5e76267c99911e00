package models

import "time"

// FlatFeatureRecord maps "{symbol}_{tf}_{field}" to a scalar.
type FlatFeatureRecord map[string]float64

// CurrencyScore is one row of the ranked strength table.
type CurrencyScore struct {
	Currency   string  `json:"currency"`
	Prediction float64 `json:"prediction"`
}

// MetaSignal is the persisted ranking outcome. TradeLevels is nil when no
// usable USD cross signal was available.
type MetaSignal struct {
	RunID               string          `json:"run_id,omitempty"`
	GeneratedAt         time.Time       `json:"generated_at"`
	StrongestCurrency   string          `json:"strongest_currency"`
	StrongestPrediction float64         `json:"strongest_prediction"`
	WeakestCurrency     string          `json:"weakest_currency"`
	WeakestPrediction   float64         `json:"weakest_prediction"`
	RecommendedPair     string          `json:"recommended_pair"`
	TradeLevels         *TradeLevels    `json:"trade_levels"`
	Ranking             []CurrencyScore `json:"ranking"`
}
