package signal

import (
	"strings"

	"github.com/shopspring/decimal"

	"FxSignal/internal/domain/models"
)

// Params are the volatility multipliers for stop and targets.
type Params struct {
	SLMult  float64
	TP1Mult float64
	TP2Mult float64
}

// PrecisionFor returns the quote precision: 3 decimals for yen-quoted
// symbols, 5 otherwise.
func PrecisionFor(symbol string) int32 {
	if strings.HasSuffix(strings.ToUpper(symbol), "JPY") {
		return 3
	}
	return 5
}

// Round rounds half-to-even at precision decimals.
func Round(v float64, precision int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(precision).Float64()
	return f
}

// BuildTrade derives entry, stop and both targets for one side. SHORT mirrors
// LONG around the entry price.
func BuildTrade(side models.Side, price, vol float64, p Params, precision int32, confidence float64) models.TradeLevels {
	dir := 1.0
	if side == models.SideShort {
		dir = -1.0
	}
	return models.TradeLevels{
		Side:       side,
		Entry:      Round(price, precision),
		SL:         Round(price-dir*p.SLMult*vol, precision),
		TP1:        Round(price+dir*p.TP1Mult*vol, precision),
		TP2:        Round(price+dir*p.TP2Mult*vol, precision),
		Confidence: confidence,
	}
}
