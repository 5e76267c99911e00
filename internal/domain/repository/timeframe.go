package repository

import "time"

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TFD1  Timeframe = "D1"
	TFH4  Timeframe = "H4"
	TFH2  Timeframe = "H2"
	TFH1  Timeframe = "H1"
	TFM30 Timeframe = "M30"
	TFM15 Timeframe = "M15"
)

var tfDurations = map[Timeframe]time.Duration{
	TFD1:  24 * time.Hour,
	TFH4:  4 * time.Hour,
	TFH2:  2 * time.Hour,
	TFH1:  time.Hour,
	TFM30: 30 * time.Minute,
	TFM15: 15 * time.Minute,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := tfDurations[tf]
	return ok
}

// Duration returns the bar length, or 0 for unknown timeframes.
func (tf Timeframe) Duration() time.Duration { return tfDurations[tf] }

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFH4 }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// MostGranular picks the shortest known timeframe from names. Unknown names
// are ignored; ok is false when none is known.
func MostGranular(names []string) (Timeframe, bool) {
	var best Timeframe
	for _, n := range names {
		tf := Timeframe(n)
		d, known := tfDurations[tf]
		if !known {
			continue
		}
		if best == "" || d < tfDurations[best] {
			best = tf
		}
	}
	return best, best != ""
}
