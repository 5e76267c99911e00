package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordUnit("inference", "ok")
	r.RecordUnit("inference", "ok")
	r.RecordUnit("inference", "insufficient_data")
	r.RecordActiveSignals(4)
	r.RecordLastPrice("EURUSD", 1.0842)
	r.RecordError("classify")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.units.WithLabelValues("inference", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.units.WithLabelValues("inference", "insufficient_data")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.activeSignals))
	assert.Equal(t, 1.0842, testutil.ToFloat64(r.lastPrice.WithLabelValues("EURUSD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("classify")))
}
