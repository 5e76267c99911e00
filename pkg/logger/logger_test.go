package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]Digest
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]Digest))
	return nil
}

func TestNamedLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).Named("inference").Named("pair")
	l.Info("cycle.done", Int("signals", 3), Float64("threshold", 0.6), Error(errors.New("boom")))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "inference.pair", m["component"])
	assert.Equal(t, "cycle.done", m["message"])
	assert.EqualValues(t, 3, m["signals"])
	assert.EqualValues(t, 0.6, m["threshold"])
	assert.Equal(t, "boom", m["error"])
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWriter(&bytes.Buffer{})
	c := l.AttachCollector(&CollectorConfig{FlushInterval: time.Hour, CountThreshold: 50, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Warn("pair.skipped", String("symbol", "EURUSD"))
	}
	l.Error("meta.failed")
	l.Info("ignored")
	assert.Equal(t, 2, c.Pending())

	l.DetachCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	counts := map[string]int{}
	for _, d := range pub.batches[0] {
		counts[d.Message] = d.Count
	}
	assert.Equal(t, map[string]int{"pair.skipped": 3, "meta.failed": 1}, counts)
}
