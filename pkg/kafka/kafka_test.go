package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	m := NewMetrics(prometheus.NewRegistry())
	p := newProducer(w, m)
	ctx := WithTraceID(context.Background(), "run-1")

	require.NoError(t, p.Publish(ctx, "signals", []byte("EURUSD"), map[string]float64{"price": 1.1}))
	require.NoError(t, p.PublishMessage(ctx, "logs", "plain"))
	require.NoError(t, p.PublishBatch(ctx, "bars", []Message{{Key: []byte("a"), Value: []byte("raw")}, {Value: struct{ N int }{2}}}))

	require.Len(t, w.msgs, 4)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	var v map[string]float64
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &v))
	assert.Equal(t, 1.1, v["price"])
	assert.Equal(t, "plain", string(w.msgs[1].Value))
	assert.Nil(t, w.msgs[1].Key)
	assert.Equal(t, "raw", string(w.msgs[2].Value))
	assert.JSONEq(t, `{"N":2}`, string(w.msgs[3].Value))
	assert.Equal(t, "run-1", ExtractTraceID(w.msgs[0]))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("bars", "ok")))
}

func TestProducerPropagatesWriteError(t *testing.T) {
	m := NewMetrics(nil)
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, m)
	assert.Error(t, p.Publish(context.Background(), "t", nil, "x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("t", "error")))
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(d, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte{})
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", km, data, nil)
	assert.Equal(t, "ab", string(data))
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	var gotErr error
	boom := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		}},
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { gotErr = err }},
	)
	_, _, _, err = boom.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, err, gotErr)
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))
	_, ok := ctx.Value(CtxStartTime).(interface{ IsZero() bool })
	assert.True(t, ok)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 8; attempt++ {
		d := backoffWithJitter(100, 1000, attempt)
		assert.GreaterOrEqual(t, int64(d), int64(50))
		assert.LessOrEqual(t, int64(d), int64(1000))
		assert.Greater(t, int64(d), int64(0))
	}
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.mu.Lock()
		if len(r.pending) > 0 {
			km := r.pending[0]
			r.pending = r.pending[1:]
			r.mu.Unlock()
			return km, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyHandler struct {
	mu    sync.Mutex
	fails map[string]int
	seen  []string
}

func (h *flakyHandler) Topic() string { return "bars" }

func (h *flakyHandler) Handle(_ context.Context, b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, string(b))
	if h.fails[string(b)] > 0 {
		h.fails[string(b)]--
		return errors.New("store down")
	}
	return nil
}

func testConsumer(r *fakeReader, dlq messageWriter, m *Metrics) *Consumer {
	cfg := defaultConsumerConfig()
	cfg.RetryMax = 1
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = time.Millisecond
	cfg.DLQTopic = "bars.dlq"
	cfg.Metrics = m
	c := newConsumer(cfg, func(string) messageReader { return r })
	c.dlq = dlq
	return c
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "bars", Offset: 1, Value: []byte("a")},
		{Topic: "bars", Offset: 2, Value: []byte("b")},
	}}
	h := &flakyHandler{fails: map[string]int{"a": 1}}
	m := NewMetrics(prometheus.NewRegistry())
	c := testConsumer(r, nil, m)
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	assert.ElementsMatch(t, []int64{1, 2}, r.commits())
	assert.Equal(t, []string{"a", "a", "b"}, h.seen)
	assert.True(t, r.closed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.handled.WithLabelValues("bars", "ok")))
}

func TestConsumerDeadLettersExhaustedMessages(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Topic: "bars", Offset: 7, Value: []byte("poison")}}}
	dlq := &fakeWriter{}
	c := testConsumer(r, dlq, nil)
	c.RegisterHandler(&flakyHandler{fails: map[string]int{"poison": 10}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "bars.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "poison", string(dlq.msgs[0].Value))
	headers := map[string]string{}
	for _, h := range dlq.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "bars", headers["source_topic"])
	assert.Equal(t, "7", headers["source_offset"])
	assert.Equal(t, "2", headers["attempts"])
}

func TestConsumerWithoutDLQLeavesFailureUncommitted(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "bars", Offset: 1, Value: []byte("bad")},
		{Topic: "bars", Offset: 2, Value: []byte("good")},
	}}
	c := testConsumer(r, nil, nil)
	c.RegisterHandler(&flakyHandler{fails: map[string]int{"bad": 10}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int64{2}, r.commits())
}

func TestConsumerStartWithoutHandlers(t *testing.T) {
	c := testConsumer(&fakeReader{}, nil, nil)
	assert.Error(t, c.Start())
}
