package meta

import (
	"math"

	"FxSignal/internal/domain/models"
)

// FeatureKey builds the flattened key for one field of a (symbol, tf) signal.
func FeatureKey(symbol, tf, field string) string {
	return symbol + "_" + tf + "_" + field
}

// Flatten turns per-pair decisions into one record. A repeated (symbol, tf)
// overwrites the earlier entry; absent pairs stay absent. NaN or infinite
// probabilities are left out of the record.
func Flatten(decisions []models.SignalDecision) models.FlatFeatureRecord {
	rec := make(models.FlatFeatureRecord, len(decisions)*4)
	for _, d := range decisions {
		setFinite(rec, FeatureKey(d.Symbol, d.Timeframe, "p_short"), d.Probabilities.Short)
		setFinite(rec, FeatureKey(d.Symbol, d.Timeframe, "p_no"), d.Probabilities.No)
		setFinite(rec, FeatureKey(d.Symbol, d.Timeframe, "p_long"), d.Probabilities.Long)
		trend := 0.0
		if d.TrendUp {
			trend = 1
		}
		rec[FeatureKey(d.Symbol, d.Timeframe, "trend_up")] = trend
	}
	return rec
}

func setFinite(rec models.FlatFeatureRecord, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		delete(rec, key)
		return
	}
	rec[key] = v
}

// Project orders rec by the feature list a model was trained on. A missing or
// non-finite value is a schema mismatch; extra keys are ignored.
func Project(rec models.FlatFeatureRecord, features []string) ([]float64, error) {
	out := make([]float64, len(features))
	var missing []string
	for i, f := range features {
		v, ok := rec[f]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			missing = append(missing, f)
			continue
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return out, nil
}
