package features

import (
	"math"
	"time"

	"FxSignal/internal/domain/models"
)

// Columns lists every derived column in the order Build emits them. Model
// metadata references these names.
var Columns = []string{
	"RET1", "RET5", "RET10", "LogRet",
	"EMA8", "EMA20", "EMA50", "EMA100", "SMA20", "SMA50",
	"RSI14", "RSI7", "RSI21",
	"ATR14", "ATR7", "ATR_pct",
	"BB_mid", "BB_std", "BB_up", "BB_dn", "BB_width", "BB_pct",
	"MACD", "MACD_signal", "MACD_hist",
	"MOM", "ROC",
	"Stoch_K", "Stoch_D", "CCI", "WilliamsR",
	"ADX", "Plus_DI", "Minus_DI",
	"Volume_SMA20", "Volume_ratio", "Volume_std", "OBV", "OBV_EMA",
	"HighLow_pct", "CloseOpen_pct", "Volatility20", "Volatility50",
	"Close_to_High", "Close_to_Low",
	"TrendUp", "TrendStrong", "UpTrend_Confirm", "DownTrend_Confirm",
	"Doji", "Hammer",
	"Hour", "DayOfWeek", "IsMonday", "IsFriday",
	"IsAsianSession", "IsLondonSession", "IsNYSession",
}

// WarmupBars is the number of leading bars consumed before the first dense
// row; Volatility50 (rolling std of a one-bar return) is the longest window.
const WarmupBars = 50

// Build derives the full indicator set from bars (ascending time) and drops
// every row that still has an undefined value. Too few bars yields an empty
// slice, never an error.
func Build(bars []models.PriceBar) []models.FeatureRow {
	n := len(bars)
	if n == 0 {
		return nil
	}
	open, high, low, close, vol := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		open[i], high[i], low[i], close[i], vol[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}

	cols := make(map[string][]float64, len(Columns))

	ret1 := pctChange(close, 1)
	cols["RET1"] = ret1
	cols["RET5"] = pctChange(close, 5)
	cols["RET10"] = pctChange(close, 10)
	logRet := nanSeries(n)
	for i := 1; i < n; i++ {
		logRet[i] = math.Log(close[i] / close[i-1])
	}
	cols["LogRet"] = logRet

	ema8, ema20, ema50 := ema(close, 8), ema(close, 20), ema(close, 50)
	cols["EMA8"], cols["EMA20"], cols["EMA50"] = ema8, ema20, ema50
	cols["EMA100"] = ema(close, 100)
	cols["SMA20"] = rollingMean(close, 20)
	cols["SMA50"] = rollingMean(close, 50)

	cols["RSI14"] = rsi(close, 14)
	cols["RSI7"] = rsi(close, 7)
	cols["RSI21"] = rsi(close, 21)

	atr14 := atr(high, low, close, 14)
	cols["ATR14"] = atr14
	cols["ATR7"] = atr(high, low, close, 7)
	cols["ATR_pct"] = zipWith(atr14, close, func(a, c float64) float64 { return a / c })

	addBollinger(cols, close)
	addMACD(cols, close)

	mom := diff(close, 10)
	cols["MOM"] = mom
	roc := pctChange(close, 10)
	for i := range roc {
		roc[i] *= 100
	}
	cols["ROC"] = roc

	addOscillators(cols, high, low, close)
	adx := addADX(cols, high, low, close)
	addVolume(cols, close, vol)

	hlPct, coPct := make([]float64, n), make([]float64, n)
	toHigh, toLow := make([]float64, n), make([]float64, n)
	doji, hammer := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		rng := high[i] - low[i]
		body := math.Abs(close[i] - open[i])
		hlPct[i] = rng / close[i]
		coPct[i] = (close[i] - open[i]) / open[i]
		toHigh[i] = (high[i] - close[i]) / (rng + eps)
		toLow[i] = (close[i] - low[i]) / (rng + eps)
		doji[i] = boolToFloat(body <= 0.1*rng)
		hammer[i] = boolToFloat(rng > 3*body && (close[i]-low[i])/(rng+eps) > 0.6)
	}
	cols["HighLow_pct"], cols["CloseOpen_pct"] = hlPct, coPct
	cols["Volatility20"] = rollingStd(ret1, 20)
	cols["Volatility50"] = rollingStd(ret1, 50)
	cols["Close_to_High"], cols["Close_to_Low"] = toHigh, toLow
	cols["Doji"], cols["Hammer"] = doji, hammer

	trendUp, trendStrong, upConf, downConf := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		trendUp[i] = boolToFloat(isTrendUp(ema20[i], ema50[i]))
		trendStrong[i] = boolToFloat(adx[i] > 25)
		upConf[i] = boolToFloat(ema8[i] > ema20[i] && ema20[i] > ema50[i])
		downConf[i] = boolToFloat(ema8[i] < ema20[i] && ema20[i] < ema50[i])
	}
	cols["TrendUp"], cols["TrendStrong"] = trendUp, trendStrong
	cols["UpTrend_Confirm"], cols["DownTrend_Confirm"] = upConf, downConf

	addCalendar(cols, bars)

	return assemble(bars, cols)
}

// isTrendUp is strict: equal averages are not an uptrend.
func isTrendUp(fast, slow float64) bool { return fast > slow }

func addBollinger(cols map[string][]float64, close []float64) {
	n := len(close)
	mid, sd := rollingMean(close, 20), rollingStd(close, 20)
	up, dn, width, pct := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		up[i] = mid[i] + 2*sd[i]
		dn[i] = mid[i] - 2*sd[i]
		width[i] = (up[i] - dn[i]) / mid[i]
		pct[i] = (close[i] - dn[i]) / (up[i] - dn[i] + eps)
	}
	cols["BB_mid"], cols["BB_std"], cols["BB_up"], cols["BB_dn"] = mid, sd, up, dn
	cols["BB_width"], cols["BB_pct"] = width, pct
}

func addMACD(cols map[string][]float64, close []float64) {
	macd := zipWith(ema(close, 12), ema(close, 26), func(a, b float64) float64 { return a - b })
	signal := ema(macd, 9)
	cols["MACD"], cols["MACD_signal"] = macd, signal
	cols["MACD_hist"] = zipWith(macd, signal, func(a, b float64) float64 { return a - b })
}

func addOscillators(cols map[string][]float64, high, low, close []float64) {
	n := len(close)
	lowMin, highMax := rollingMin(low, 14), rollingMax(high, 14)
	k, wr := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		k[i] = 100 * (close[i] - lowMin[i]) / (highMax[i] - lowMin[i] + eps)
		wr[i] = -100 * (highMax[i] - close[i]) / (highMax[i] - lowMin[i] + eps)
	}
	cols["Stoch_K"] = k
	cols["Stoch_D"] = rollingMean(k, 3)
	cols["WilliamsR"] = wr

	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}
	tpMean, tpStd := rollingMean(tp, 20), rollingStd(tp, 20)
	cci := make([]float64, n)
	for i := 0; i < n; i++ {
		cci[i] = (tp[i] - tpMean[i]) / (0.015*tpStd[i] + eps)
	}
	cols["CCI"] = cci
}

// addADX uses simple rolling means of the directional moves and the true
// range, then smooths DX over another 14 bars. It returns the ADX series.
func addADX(cols map[string][]float64, high, low, close []float64) []float64 {
	n := len(close)
	plusDM, minusDM := diff(high, 1), diff(low, 1)
	for i := range minusDM {
		minusDM[i] = -minusDM[i]
		if plusDM[i] < 0 {
			plusDM[i] = 0
		}
		if minusDM[i] < 0 {
			minusDM[i] = 0
		}
	}
	trMean := rollingMean(trueRange(high, low, close), 14)
	pMean, mMean := rollingMean(plusDM, 14), rollingMean(minusDM, 14)
	plusDI, minusDI, dx := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		plusDI[i] = 100 * pMean[i] / trMean[i]
		minusDI[i] = 100 * mMean[i] / trMean[i]
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / (plusDI[i] + minusDI[i] + eps)
	}
	adx := rollingMean(dx, 14)
	cols["ADX"], cols["Plus_DI"], cols["Minus_DI"] = adx, plusDI, minusDI
	return adx
}

func addVolume(cols map[string][]float64, close, vol []float64) {
	n := len(close)
	sma := rollingMean(vol, 20)
	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		ratio[i] = vol[i] / (sma[i] + eps)
	}
	obv := make([]float64, n)
	for i := 1; i < n; i++ {
		obv[i] = obv[i-1] + sign(close[i]-close[i-1])*vol[i]
	}
	cols["Volume_SMA20"], cols["Volume_ratio"] = sma, ratio
	cols["Volume_std"] = rollingStd(vol, 20)
	cols["OBV"], cols["OBV_EMA"] = obv, ema(obv, 20)
}

// addCalendar derives session flags from the bar open time in UTC. Sessions
// overlap: London [8,16), New York [13,21).
func addCalendar(cols map[string][]float64, bars []models.PriceBar) {
	n := len(bars)
	hour, dow := make([]float64, n), make([]float64, n)
	mon, fri := make([]float64, n), make([]float64, n)
	asia, london, ny := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		t := b.Time.UTC()
		h := t.Hour()
		d := mondayIndex(t.Weekday())
		hour[i], dow[i] = float64(h), float64(d)
		mon[i] = boolToFloat(d == 0)
		fri[i] = boolToFloat(d == 4)
		asia[i] = boolToFloat(h >= 0 && h < 8)
		london[i] = boolToFloat(h >= 8 && h < 16)
		ny[i] = boolToFloat(h >= 13 && h < 21)
	}
	cols["Hour"], cols["DayOfWeek"] = hour, dow
	cols["IsMonday"], cols["IsFriday"] = mon, fri
	cols["IsAsianSession"], cols["IsLondonSession"], cols["IsNYSession"] = asia, london, ny
}

// mondayIndex maps time.Weekday onto Monday=0 ... Sunday=6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// assemble keeps only rows where every column is finite.
func assemble(bars []models.PriceBar, cols map[string][]float64) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(bars))
rows:
	for i, b := range bars {
		vals := make(map[string]float64, len(Columns))
		for _, name := range Columns {
			v := cols[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue rows
			}
			vals[name] = v
		}
		out = append(out, models.FeatureRow{PriceBar: b, Values: vals})
	}
	return out
}

func zipWith(a, b []float64, fn func(x, y float64) float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = fn(a[i], b[i])
	}
	return out
}
