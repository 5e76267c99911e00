package models

// Requests for the HTTP API. Defaults and validation are applied by
// pkg/http.ReadAndValidateRequest.

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	TF     string `query:"tf" json:"tf" validate:"omitempty,timeframe"`
	Status string `query:"status" json:"status" validate:"omitempty,oneof=ACTIVE WATCHLIST"`
	Date   string `query:"date" json:"date" validate:"omitempty,day"`
}

type PricesRequest struct {
	Symbols []string `query:"symbol" json:"symbols" validate:"omitempty,max=32,dive,symbol"`
}

type BacktestRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=0,lte=1000"`
}

type CycleRequest struct {
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
	SkipMeta  bool     `json:"skip_meta"`
}

type LatestSignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	TF     string `query:"tf" json:"tf" validate:"omitempty,timeframe"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gt=0,lte=500"`
}

type BarsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	TF     string `query:"tf" json:"tf" default:"H4" validate:"timeframe"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gt=0,lte=5000"`
}

// CycleResult summarises a POST /api/cycle run.
type CycleResult struct {
	RunID     string      `json:"run_id"`
	Signals   int         `json:"signals"`
	Active    int         `json:"active"`
	Meta      *MetaSignal `json:"meta,omitempty"`
	MetaError string      `json:"meta_error,omitempty"`
}
