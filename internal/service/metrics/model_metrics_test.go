package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveModelCall(t *testing.T) {
	m := NewModelCalls(prometheus.NewRegistry())
	m.ObserveModelCall("/classify/EURUSD/H4", 0.01, true)
	m.ObserveModelCall("/classify/USDJPY/D1", 0.02, false)
	m.ObserveModelCall("/predict/EUR", 0.01, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/classify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/predict")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.latency))
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/classify", endpoint("/classify/EURUSD/H4"))
	assert.Equal(t, "/health", endpoint("/health"))
	assert.Equal(t, "", endpoint(""))
}
