package util

import (
	"reflect"
	"testing"
)

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("", 7) != 7 || ParseIntDefault("x", 7) != 7 || ParseIntDefault("12", 7) != 12 {
		t.Fatalf("unexpected ParseIntDefault result")
	}
}

func TestSplitSymbols(t *testing.T) {
	got := SplitSymbols("eurusd, USDJPY,,EURUSD ")
	want := []string{"EURUSD", "USDJPY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
