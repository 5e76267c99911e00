package models

import (
	"encoding/json"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusWatchlist Status = "WATCHLIST"
)

// ProbabilityVector holds the three independent classifier scores. They are
// not renormalized and may fall outside [0,1] if the model emits that.
type ProbabilityVector struct {
	Short float64 `json:"short"`
	No    float64 `json:"no"`
	Long  float64 `json:"long"`
}

// TradeLevels are the entry/stop/targets for one side, already rounded.
type TradeLevels struct {
	Side       Side    `json:"side,omitempty"`
	Entry      float64 `json:"entry"`
	SL         float64 `json:"sl"`
	TP1        float64 `json:"tp1"`
	TP2        float64 `json:"tp2"`
	Confidence float64 `json:"confidence"`
}

// SignalDecision is the outcome of one inference for a (symbol, timeframe).
type SignalDecision struct {
	Symbol          string
	Timeframe       string
	Time            time.Time
	Price           float64
	ATR             float64
	Side            Side
	Status          Status
	Confidence      float64
	ProbabilityPass bool
	TrendPass       bool
	Comment         string
	Primary         TradeLevels
	Alternative     TradeLevels
	TrendUp         bool
	Probabilities   ProbabilityVector
}

// Active reports whether both filters passed.
func (d SignalDecision) Active() bool { return d.Status == StatusActive }

type decisionJSON struct {
	Side            Side    `json:"side"`
	Status          Status  `json:"status"`
	Confidence      float64 `json:"confidence"`
	ProbabilityPass bool    `json:"probability_pass"`
	TrendPass       bool    `json:"trend_pass"`
	Comment         string  `json:"comment"`
}

type signalBodyJSON struct {
	Decision      decisionJSON      `json:"decision"`
	Primary       TradeLevels       `json:"primary"`
	Alternative   TradeLevels       `json:"alternative"`
	TrendUp       bool              `json:"trend_up"`
	Probabilities ProbabilityVector `json:"probabilities"`
}

type signalJSON struct {
	Symbol string         `json:"symbol"`
	TF     string         `json:"tf"`
	Time   time.Time      `json:"time"`
	Price  float64        `json:"price"`
	ATR    float64        `json:"atr"`
	Signal signalBodyJSON `json:"signal"`
}

// MarshalJSON writes the nested document shape consumed by dashboards.
func (d SignalDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(signalJSON{
		Symbol: d.Symbol,
		TF:     d.Timeframe,
		Time:   d.Time,
		Price:  d.Price,
		ATR:    d.ATR,
		Signal: signalBodyJSON{
			Decision: decisionJSON{
				Side:            d.Side,
				Status:          d.Status,
				Confidence:      d.Confidence,
				ProbabilityPass: d.ProbabilityPass,
				TrendPass:       d.TrendPass,
				Comment:         d.Comment,
			},
			Primary:       d.Primary,
			Alternative:   d.Alternative,
			TrendUp:       d.TrendUp,
			Probabilities: d.Probabilities,
		},
	})
}

func (d *SignalDecision) UnmarshalJSON(b []byte) error {
	var w signalJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = SignalDecision{
		Symbol:          w.Symbol,
		Timeframe:       w.TF,
		Time:            w.Time,
		Price:           w.Price,
		ATR:             w.ATR,
		Side:            w.Signal.Decision.Side,
		Status:          w.Signal.Decision.Status,
		Confidence:      w.Signal.Decision.Confidence,
		ProbabilityPass: w.Signal.Decision.ProbabilityPass,
		TrendPass:       w.Signal.Decision.TrendPass,
		Comment:         w.Signal.Decision.Comment,
		Primary:         w.Signal.Primary,
		Alternative:     w.Signal.Alternative,
		TrendUp:         w.Signal.TrendUp,
		Probabilities:   w.Signal.Probabilities,
	}
	return nil
}

// SignalsDocument is the per-cycle output written to signals.json.
type SignalsDocument struct {
	RunID       string           `json:"run_id,omitempty"`
	Date        string           `json:"date"`
	Timezone    string           `json:"timezone"`
	GeneratedAt time.Time        `json:"generated_at"`
	Disclaimer  string           `json:"disclaimer"`
	Signals     []SignalDecision `json:"signals"`
}

// ActiveCount counts ACTIVE decisions in the document.
func (d SignalsDocument) ActiveCount() int {
	n := 0
	for _, s := range d.Signals {
		if s.Active() {
			n++
		}
	}
	return n
}
