package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
symbols: [EURUSD, USDJPY]
timeframes:
  H4: { seq_len: 30 }
  D1: { seq_len: 60, sl_mult: 2.0, tp1_mult: 1.0, tp2_mult: 2.5 }
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 0.6, c.Thresholds.Prob)
	assert.Equal(t, 10000.0, c.Backtest.InitialBalance)
	assert.Equal(t, 0.02, c.Backtest.RiskPerTrade)
	assert.Equal(t, 100, c.Backtest.TradeLogLimit)
	assert.Equal(t, 24, c.Labels.LookaheadHours)
	assert.Equal(t, 10*time.Second, c.ModelServer.Timeout)
	assert.Equal(t, "info", c.Log.Level)

	h4 := c.Timeframes["H4"]
	assert.Equal(t, 30, h4.SeqLen)
	assert.Equal(t, 1.5, h4.SLMult)
	assert.Equal(t, 3.0, h4.TP2Mult)
	assert.Equal(t, 2.0, c.Timeframes["D1"].SLMult)
	assert.Equal(t, []string{"D1", "H4"}, c.TimeframeNames())
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no symbols":     "timeframes: { H4: {} }\n",
		"bad symbol":     "symbols: [EUR]\ntimeframes: { H4: {} }\n",
		"no timeframes":  "symbols: [EURUSD]\n",
		"threshold > 1":  "symbols: [EURUSD]\ntimeframes: { H4: {} }\nthresholds: { prob: 1.2 }\n",
		"tp2 below tp1":  "symbols: [EURUSD]\ntimeframes: { H4: { tp1_mult: 2.0, tp2_mult: 1.0 } }\n",
		"kafka no hosts": "symbols: [EURUSD]\ntimeframes: { H4: {} }\nkafka: { enabled: true }\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"FXSIGNAL_SYMBOLS":        "GBPUSD, AUDUSD",
		"FXSIGNAL_PROB_THRESHOLD": "0.75",
		"FXSIGNAL_KAFKA_BROKERS":  "k1:9092,k2:9092",
		"FXSIGNAL_POSTGRES_DSN":   "postgres://x",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"GBPUSD", "AUDUSD"}, c.Symbols)
	assert.Equal(t, 0.75, c.Thresholds.Prob)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Postgres.Enabled)
	require.NoError(t, c.Validate())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, c.Symbols)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
