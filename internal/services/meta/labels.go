package meta

import (
	"sort"
	"time"

	"FxSignal/internal/domain/models"
)

// Currencies extracts the distinct non-USD currency codes from symbols.
func Currencies(symbols []string) []string {
	seen := map[string]struct{}{}
	for _, s := range symbols {
		if len(s) != 6 {
			continue
		}
		for _, c := range []string{s[:3], s[3:]} {
			if c != "USD" {
				seen[c] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// StrengthLabels computes, per currency, the return of its USD cross from the
// last close at or before at to the first close at or after at+lookahead. A
// USD{CUR} cross has its return negated. Currencies lacking either price are
// left out.
func StrengthLabels(at time.Time, lookahead time.Duration, bars map[string][]models.PriceBar) map[string]float64 {
	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	future := at.Add(lookahead)
	out := map[string]float64{}
	for _, cur := range Currencies(symbols) {
		series, inverse := bars[cur+"USD"], false
		if series == nil {
			series, inverse = bars["USD"+cur], true
		}
		if series == nil {
			continue
		}
		now, ok1 := closeAtOrBefore(series, at)
		fut, ok2 := closeAtOrAfter(series, future)
		if !ok1 || !ok2 {
			continue
		}
		ret := 0.0
		if now > 0 {
			ret = (fut - now) / now
		}
		if inverse {
			ret = -ret
		}
		out[cur] = ret
	}
	return out
}

func closeAtOrBefore(bars []models.PriceBar, t time.Time) (float64, bool) {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(t) })
	if i == 0 {
		return 0, false
	}
	return bars[i-1].Close, true
}

func closeAtOrAfter(bars []models.PriceBar, t time.Time) (float64, bool) {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(t) })
	if i == len(bars) {
		return 0, false
	}
	return bars[i].Close, true
}
