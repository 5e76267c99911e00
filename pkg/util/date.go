package util

import (
	"fmt"
	"strconv"
	"time"
)

const DayLayout = "2006-01-02"

var barLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	DayLayout,
}

// ParseTime tries RFC3339, the "2006-01-02 15:04:05" layout written by the
// bar exporters, a bare date, and unix seconds. Zone-less values are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range barLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseDay parses a YYYY-MM-DD calendar day at UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("day %q: %w", s, err)
	}
	return t, nil
}

// DayKey formats t as YYYY-MM-DD in UTC.
func DayKey(t time.Time) string { return t.UTC().Format(DayLayout) }

// EndOfDay is the last instant of t's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

// DayRange lists every UTC calendar day in [from, to]; empty when to < from.
func DayRange(from, to time.Time) []time.Time {
	y, m, d := from.UTC().Date()
	cur := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for !cur.After(to.UTC()) {
		out = append(out, cur)
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}
