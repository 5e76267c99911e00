package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSignal/internal/domain/models"
)

func synthBars(n int, slope float64) []models.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	prev := 1.1
	for i := 0; i < n; i++ {
		c := 1.1 + 0.01*math.Sin(float64(i)/5) + slope*float64(i)
		bars[i] = models.PriceBar{
			Time:   base.Add(time.Duration(i) * 4 * time.Hour),
			Open:   prev,
			High:   math.Max(prev, c) + 0.002 + 0.001*math.Abs(math.Cos(float64(i))),
			Low:    math.Min(prev, c) - 0.002,
			Close:  c,
			Volume: 100 + float64(i%7)*10,
		}
		prev = c
	}
	return bars
}

func TestBuildDropsWarmupRows(t *testing.T) {
	bars := synthBars(120, 0.0002)
	rows := Build(bars)

	require.Len(t, rows, 120-WarmupBars)
	assert.Equal(t, bars[WarmupBars].Time, rows[0].Time)
	assert.Equal(t, bars[119].Close, rows[len(rows)-1].Close)

	for _, r := range rows {
		require.Len(t, r.Values, len(Columns))
		for _, c := range Columns {
			v, ok := r.Get(c)
			require.True(t, ok, c)
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), c)
		}
	}
}

func TestBuildInsufficientDataIsEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
	assert.Empty(t, Build(synthBars(WarmupBars, 0.0002)))
	assert.Len(t, Build(synthBars(WarmupBars+1, 0.0002)), 1)
}

func TestTrendFlagFollowsEMAs(t *testing.T) {
	up := Build(synthBars(200, 0.002))
	require.NotEmpty(t, up)
	last := up[len(up)-1]
	assert.True(t, last.TrendUp())
	assert.Greater(t, last.Values["EMA20"], last.Values["EMA50"])

	down := Build(synthBars(200, -0.002))
	require.NotEmpty(t, down)
	assert.False(t, down[len(down)-1].TrendUp())
}

func TestIndicatorBounds(t *testing.T) {
	for _, r := range Build(synthBars(150, 0.0005)) {
		assert.GreaterOrEqual(t, r.Values["RSI14"], 0.0)
		assert.LessOrEqual(t, r.Values["RSI14"], 100.0)
		assert.GreaterOrEqual(t, r.Values["Stoch_K"], 0.0)
		assert.LessOrEqual(t, r.Values["Stoch_K"], 100.0)
		assert.LessOrEqual(t, r.Values["WilliamsR"], 0.0)
		assert.Greater(t, r.ATR(), 0.0)
		assert.InDelta(t, 1.0, r.Values["Close_to_High"]+r.Values["Close_to_Low"], 1e-6)
	}
}

func TestEMASeedsWithFirstValue(t *testing.T) {
	got := ema([]float64{10, 20, 20}, 3)
	assert.Equal(t, []float64{10, 15, 17.5}, got)

	withGap := ema([]float64{math.NaN(), 4, 8}, 3)
	assert.True(t, math.IsNaN(withGap[0]))
	assert.Equal(t, 4.0, withGap[1])
	assert.Equal(t, 6.0, withGap[2])
}

func TestRollingWindows(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	m := rollingMean(x, 2)
	assert.True(t, math.IsNaN(m[0]))
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, m[1:])

	sd := rollingStd(x, 4)
	assert.InDelta(t, 1.2909944, sd[3], 1e-6)

	assert.Equal(t, 3.0, rollingMax(x, 3)[2])
	assert.Equal(t, 2.0, rollingMin(x, 3)[3])

	gap := rollingMean([]float64{math.NaN(), 1, 2}, 2)
	assert.True(t, math.IsNaN(gap[1]))
	assert.Equal(t, 1.5, gap[2])
}

func TestRSIMonotonicSeries(t *testing.T) {
	close := []float64{1, 2, 3, 4, 5, 6}
	r := rsi(close, 3)
	assert.True(t, math.IsNaN(r[2]))
	assert.InDelta(t, 100, r[5], 1e-6)
}

func TestTrueRangeFirstBarUsesHighLow(t *testing.T) {
	tr := trueRange([]float64{1.2, 1.5}, []float64{1.0, 1.3}, []float64{1.1, 1.4})
	assert.InDelta(t, 0.2, tr[0], 1e-12)
	assert.InDelta(t, 0.4, tr[1], 1e-12)
}

func TestCalendarFlags(t *testing.T) {
	assert.Equal(t, 0, mondayIndex(time.Monday))
	assert.Equal(t, 4, mondayIndex(time.Friday))
	assert.Equal(t, 6, mondayIndex(time.Sunday))

	bars := []models.PriceBar{{Time: time.Date(2024, 1, 5, 14, 0, 0, 0, time.UTC)}}
	cols := map[string][]float64{}
	addCalendar(cols, bars)
	assert.Equal(t, 14.0, cols["Hour"][0])
	assert.Equal(t, 1.0, cols["IsFriday"][0])
	assert.Equal(t, 1.0, cols["IsLondonSession"][0])
	assert.Equal(t, 1.0, cols["IsNYSession"][0])
	assert.Equal(t, 0.0, cols["IsAsianSession"][0])
}

func constBars(n int, open, high, low, close float64) []models.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{Time: base.Add(time.Duration(i) * time.Hour), Open: open, High: high, Low: low, Close: close}
	}
	return bars
}

func TestTrendUpIsStrict(t *testing.T) {
	tests := []struct {
		name       string
		fast, slow float64
		want       bool
	}{
		{"above", 1.2, 1.1, true},
		{"equal", 1.1, 1.1, false},
		{"below", 1.0, 1.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTrendUp(tt.fast, tt.slow))
		})
	}
}

func TestZeroDenominatorsStayFinite(t *testing.T) {
	// constant close with a fixed high/low range
	rows := Build(constBars(120, 1, 1.5, 0.5, 1))
	require.Len(t, rows, 120-WarmupBars)

	last := rows[len(rows)-1]
	tests := []struct {
		col  string
		want float64
	}{
		{"RSI14", 0},
		{"BB_std", 0},
		{"BB_width", 0},
		{"BB_pct", 0},
		{"CCI", 0},
		{"Plus_DI", 0},
		{"Minus_DI", 0},
		{"ADX", 0},
		{"Volume_ratio", 0},
		{"Stoch_K", 50},
		{"TrendUp", 0},
		{"UpTrend_Confirm", 0},
		{"DownTrend_Confirm", 0},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			v, ok := last.Get(tt.col)
			require.True(t, ok)
			assert.InDelta(t, tt.want, v, 1e-6)
		})
	}
}

func TestFlatWindowYieldsNoRows(t *testing.T) {
	// zero true range leaves the directional indicators undefined
	assert.Empty(t, Build(constBars(120, 1, 1, 1, 1)))
}
