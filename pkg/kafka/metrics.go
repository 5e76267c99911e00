package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups producer and consumer instrumentation. One instance is
// shared by every producer and consumer built against the same registry.
type Metrics struct {
	published   *prometheus.CounterVec
	publishSize *prometheus.CounterVec
	publishTime *prometheus.HistogramVec

	handled    *prometheus.CounterVec
	handleTime *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_kafka_published_total",
			Help: "Messages written to Kafka by topic and result",
		}, []string{"topic", "result"}),
		publishSize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_kafka_published_bytes_total",
			Help: "Payload bytes written to Kafka",
		}, []string{"topic"}),
		publishTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fxsignal_kafka_publish_seconds",
			Help:    "WriteMessages latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_kafka_consumed_total",
			Help: "Consumed messages by topic and outcome (ok, failed, dead_lettered)",
		}, []string{"topic", "outcome"}),
		handleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fxsignal_kafka_handle_seconds",
			Help:    "Handler time per message including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fxsignal_kafka_consumer_queue_depth",
			Help: "Messages fetched but not yet handled",
		}, []string{"topic"}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.publishSize, m.publishTime, m.handled, m.handleTime, m.queueDepth)
	}
	return m
}

func (m *Metrics) observePublish(topic string, bytes int64, n int, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(topic, result).Add(float64(n))
	if err == nil {
		m.publishSize.WithLabelValues(topic).Add(float64(bytes))
	}
	m.publishTime.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *Metrics) observeHandle(topic, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(topic, outcome).Inc()
	m.handleTime.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *Metrics) setQueueDepth(topic string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(topic).Set(float64(n))
}
