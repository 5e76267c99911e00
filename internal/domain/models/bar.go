package models

import "time"

// PriceBar is one OHLCV step of a (symbol, timeframe) series.
type PriceBar struct {
	Time   time.Time `json:"time" db:"time"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// SymbolBar is a PriceBar tagged with where it belongs; the unit carried on
// the bars topic.
type SymbolBar struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"tf"`
	PriceBar
}

// FeatureRow is a PriceBar plus every derived indicator, keyed by column name.
// Rows are dense: Values never holds NaN.
type FeatureRow struct {
	PriceBar
	Values map[string]float64
}

// Get resolves a column by name, including the raw OHLCV columns.
func (r FeatureRow) Get(name string) (float64, bool) {
	switch name {
	case "Open":
		return r.Open, true
	case "High":
		return r.High, true
	case "Low":
		return r.Low, true
	case "Close":
		return r.Close, true
	case "Volume":
		return r.Volume, true
	}
	v, ok := r.Values[name]
	return v, ok
}

// TrendUp reports the EMA20 > EMA50 flag.
func (r FeatureRow) TrendUp() bool { return r.Values["TrendUp"] == 1 }

// ATR returns the 14-bar average true range.
func (r FeatureRow) ATR() float64 { return r.Values["ATR14"] }

// ClassifierMeta describes what a trained classifier expects: the feature
// columns in order and the window length.
type ClassifierMeta struct {
	Features []string `json:"features"`
	SeqLen   int      `json:"seq_len"`
}
