package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Series helpers. A NaN marks an undefined value; every rolling window needs
// n defined values before it produces one.

const eps = 1e-9

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ema is an exponential moving average with alpha = 2/(span+1), seeded with
// the first defined value.
func ema(x []float64, span int) []float64 {
	out := nanSeries(len(x))
	alpha := 2.0 / float64(span+1)
	prev := math.NaN()
	for i, v := range x {
		switch {
		case math.IsNaN(v):
			out[i] = prev
			continue
		case math.IsNaN(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

func rolling(x []float64, n int, fn func(w []float64) float64) []float64 {
	out := nanSeries(len(x))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(x); i++ {
		w := x[i-n+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(x []float64, n int) []float64 {
	return rolling(x, n, func(w []float64) float64 { return stat.Mean(w, nil) })
}

// rollingStd uses the sample (n-1) standard deviation.
func rollingStd(x []float64, n int) []float64 {
	return rolling(x, n, func(w []float64) float64 { return stat.StdDev(w, nil) })
}

func rollingMin(x []float64, n int) []float64 {
	return rolling(x, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func rollingMax(x []float64, n int) []float64 {
	return rolling(x, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

// diff returns x[i] - x[i-lag].
func diff(x []float64, lag int) []float64 {
	out := nanSeries(len(x))
	for i := lag; i < len(x); i++ {
		out[i] = x[i] - x[i-lag]
	}
	return out
}

// pctChange returns x[i]/x[i-lag] - 1.
func pctChange(x []float64, lag int) []float64 {
	out := nanSeries(len(x))
	for i := lag; i < len(x); i++ {
		out[i] = x[i]/x[i-lag] - 1
	}
	return out
}

// rsi averages gains and losses with a simple rolling mean.
func rsi(close []float64, n int) []float64 {
	d := diff(close, 1)
	up := make([]float64, len(d))
	down := make([]float64, len(d))
	for i, v := range d {
		if math.IsNaN(v) {
			up[i], down[i] = v, v
			continue
		}
		up[i] = math.Max(v, 0)
		down[i] = -math.Min(v, 0)
	}
	mu, md := rollingMean(up, n), rollingMean(down, n)
	out := nanSeries(len(close))
	for i := range out {
		rs := mu[i] / (md[i] + eps)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// trueRange is max(h-l, |h-prevClose|, |l-prevClose|); the first bar has no
// previous close and falls back to h-l.
func trueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		tr := math.Abs(high[i] - low[i])
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

func atr(high, low, close []float64, n int) []float64 {
	return ema(trueRange(high, low, close), n)
}

func hasNaN(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
