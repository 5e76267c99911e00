package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	units         *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	activeSignals prometheus.Gauge
	cycle         *prometheus.HistogramVec
}

// New registers the pipeline collectors on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		units: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxsignal_units_total",
				Help: "Pipeline units by stage and outcome (ok, skipped reason, error)",
			},
			[]string{"stage", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxsignal_last_price",
				Help: "Last close seen for a symbol",
			},
			[]string{"symbol"},
		),
		activeSignals: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "fxsignal_active_signals",
				Help: "ACTIVE decisions produced by the last inference cycle",
			},
		),
		cycle: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxsignal_cycle_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
	}
}

func (r *Recorder) RecordUnit(stage, outcome string) {
	r.units.WithLabelValues(stage, outcome).Inc()
}

func (r *Recorder) RecordCycle(stage string, seconds float64) {
	r.cycle.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// Nop discards everything; used by one-shot CLI commands.
type Nop struct{}

func (Nop) RecordUnit(string, string) {}
func (Nop) RecordCycle(string, float64) {}
func (Nop) RecordActiveSignals(int) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
