package signal

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"FxSignal/internal/domain/models"
)

var defaultParams = Params{SLMult: 1.5, TP1Mult: 1.5, TP2Mult: 3.0}

func TestBuildTradeLongExample(t *testing.T) {
	got := BuildTrade(models.SideLong, 1.10000, 0.0050, defaultParams, 5, 0.7)
	assert.Equal(t, models.TradeLevels{
		Side: models.SideLong, Entry: 1.1, SL: 1.0925, TP1: 1.1075, TP2: 1.115, Confidence: 0.7,
	}, got)
}

func TestBuildTradeShortMirrors(t *testing.T) {
	got := BuildTrade(models.SideShort, 1.10000, 0.0050, defaultParams, 5, 0.3)
	assert.Equal(t, 1.1075, got.SL)
	assert.Equal(t, 1.0925, got.TP1)
	assert.Equal(t, 1.085, got.TP2)
}

func TestBuildTradeOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		price := 0.5 + rng.Float64()*150
		prec := int32(5)
		if price > 20 {
			prec = 3
		}
		// keep the volatility well above the rounding step so levels stay distinct
		vol := price * (0.002 + rng.Float64()*0.02)
		tp1 := 0.5 + rng.Float64()*2
		p := Params{SLMult: 0.5 + rng.Float64()*2, TP1Mult: tp1, TP2Mult: tp1 + 0.5 + rng.Float64()*2}

		l := BuildTrade(models.SideLong, price, vol, p, prec, 0.5)
		if !(l.SL < l.Entry && l.Entry < l.TP1 && l.TP1 < l.TP2) {
			t.Fatalf("long ordering broken: %+v", l)
		}
		s := BuildTrade(models.SideShort, price, vol, p, prec, 0.5)
		if !(s.TP2 < s.TP1 && s.TP1 < s.Entry && s.Entry < s.SL) {
			t.Fatalf("short ordering broken: %+v", s)
		}
	}
}

func TestRoundHalfToEvenAndIdempotent(t *testing.T) {
	assert.Equal(t, 0.12, Round(0.125, 2))
	assert.Equal(t, 0.14, Round(0.135, 2))
	assert.Equal(t, 151.234, Round(151.2345, 3))

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		v := rng.Float64() * 200
		for _, p := range []int32{3, 5} {
			once := Round(v, p)
			assert.Equal(t, once, Round(once, p))
		}
	}
}

func TestPrecisionFor(t *testing.T) {
	assert.Equal(t, int32(3), PrecisionFor("USDJPY"))
	assert.Equal(t, int32(3), PrecisionFor("eurjpy"))
	assert.Equal(t, int32(5), PrecisionFor("EURUSD"))
	assert.Equal(t, int32(5), PrecisionFor("JPYUSD"))
}
