package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSignal/internal/domain/models"
)

type flakyWriter struct {
	mu    sync.Mutex
	fails int
	got   []models.SymbolBar
}

func (w *flakyWriter) AppendBars(_ context.Context, bars []models.SymbolBar) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fails > 0 {
		w.fails--
		return errors.New("store down")
	}
	w.got = append(w.got, bars...)
	return nil
}

func (w *flakyWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.got)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (c *countingMetrics) RecordUnit(string, string)       {}
func (c *countingMetrics) RecordCycle(string, float64)     {}
func (c *countingMetrics) RecordActiveSignals(int)         {}
func (c *countingMetrics) RecordLastPrice(string, float64) {}

func (c *countingMetrics) RecordError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errors == nil {
		c.errors = map[string]int{}
	}
	c.errors[kind]++
}

func bar(h int, close float64) models.SymbolBar {
	return models.SymbolBar{
		Symbol:    "EURUSD",
		Timeframe: "H1",
		PriceBar:  models.PriceBar{Time: time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC), Open: close, High: close, Low: close, Close: close},
	}
}

func TestIngestDropsStaleBars(t *testing.T) {
	w := &flakyWriter{}
	m := &countingMetrics{}
	b := NewIngestBuffer(w, m)

	require.NoError(t, b.AppendBars(context.Background(), []models.SymbolBar{bar(1, 1.1), bar(2, 1.2)}))
	require.NoError(t, b.AppendBars(context.Background(), []models.SymbolBar{bar(2, 1.25), bar(0, 1.0)}))
	assert.Equal(t, 2, w.count())
	assert.Equal(t, 2, m.errors["ingest_stale"])
}

func TestIngestRejectsInvalidBar(t *testing.T) {
	b := NewIngestBuffer(&flakyWriter{}, nil)
	bad := bar(1, 1.1)
	bad.High, bad.Low = 1.0, 1.2
	assert.Error(t, b.AppendBars(context.Background(), []models.SymbolBar{bad}))
}

func TestIngestBuffersWhileStoreFails(t *testing.T) {
	w := &flakyWriter{fails: 2}
	b := NewIngestBuffer(w, nil, WithBackoff(time.Millisecond, 5*time.Millisecond), WithBufferSize(4))

	err := b.AppendBars(context.Background(), []models.SymbolBar{bar(1, 1.1)})
	require.Error(t, err)
	assert.Equal(t, 1, b.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.Pending())
}

func TestIngestRetryAfterFullBufferIsNotStale(t *testing.T) {
	w := &flakyWriter{fails: 3}
	m := &countingMetrics{}
	b := NewIngestBuffer(w, m, WithBufferSize(1))
	ctx := context.Background()

	require.Error(t, b.AppendBars(ctx, []models.SymbolBar{bar(1, 1.1)}))
	require.Equal(t, 1, b.Pending())

	// buffer full: bar 2 is neither stored nor held
	require.Error(t, b.AppendBars(ctx, []models.SymbolBar{bar(2, 1.2)}))
	assert.Equal(t, 1, m.errors["ingest_buffer_full"])

	// redelivery must not be treated as a duplicate
	require.Error(t, b.AppendBars(ctx, []models.SymbolBar{bar(2, 1.2)}))
	assert.Equal(t, 0, m.errors["ingest_stale"])

	require.NoError(t, b.AppendBars(ctx, []models.SymbolBar{bar(2, 1.2)}))
	assert.Equal(t, 1, w.count())
	assert.Equal(t, 1, b.Pending())
}
