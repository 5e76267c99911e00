package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeExporterLayout(t *testing.T) {
	got, ok := ParseTime("2024-03-01 16:00:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestDayRange(t *testing.T) {
	from, _ := ParseDay("2024-02-27")
	to, _ := ParseDay("2024-03-02")
	days := DayRange(from, to)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	if DayKey(days[2]) != "2024-02-29" {
		t.Fatalf("unexpected leap day %s", DayKey(days[2]))
	}
	if len(DayRange(to, from)) != 0 {
		t.Fatalf("expected empty range")
	}
}

func TestEndOfDay(t *testing.T) {
	d := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	eod := EndOfDay(d)
	if DayKey(eod) != "2024-03-01" || !eod.Add(time.Nanosecond).Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end of day %v", eod)
	}
	if _, err := ParseDay("2024-13-01"); err == nil {
		t.Fatalf("expected error")
	}
}
