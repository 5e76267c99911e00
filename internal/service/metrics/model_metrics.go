package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModelCalls observes model-server round trips for the analytics clients.
type ModelCalls struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

func NewModelCalls(reg prometheus.Registerer) *ModelCalls {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &ModelCalls{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fxsignal",
				Subsystem: "model",
				Name:      "latency_seconds",
				Help:      "Latency of model server endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fxsignal",
				Subsystem: "model",
				Name:      "errors_total",
				Help:      "Errors by model server endpoint",
			},
			[]string{"endpoint"},
		),
	}
}

// ObserveModelCall keeps the endpoint label coarse: "/classify/EURUSD/H4"
// is recorded as "/classify".
func (m *ModelCalls) ObserveModelCall(path string, seconds float64, ok bool) {
	ep := endpoint(path)
	m.latency.WithLabelValues(ep).Observe(seconds)
	if !ok {
		m.errors.WithLabelValues(ep).Inc()
	}
}

func endpoint(path string) string {
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}
