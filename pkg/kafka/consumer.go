package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "FxSignal/pkg/logger"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var errStopping = errors.New("kafka consumer stopping")

type partition struct {
	topic string
	id    int
}

// Consumer fetches from one reader per registered topic and hands messages to
// a worker pool. Messages of one partition are handled one at a time; offsets
// are committed after success or after the message reached the DLQ.
type Consumer struct {
	cfg       ConsumerConfig
	newReader func(topic string) messageReader
	readers   map[string]messageReader
	handlers  map[string]MessageHandler
	queue     chan kafka.Message
	dlq       messageWriter
	hook      ConsumerHook
	l         *applogger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	fetchWG  sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once

	partMu    sync.Mutex
	partLocks map[partition]*sync.Mutex
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: brokers are required")
	}

	c := newConsumer(cfg, func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
			MaxWait:  cfg.FetchWait,
		})
	})
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return c, nil
}

func newConsumer(cfg ConsumerConfig, newReader func(string) messageReader) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:       cfg,
		newReader: newReader,
		readers:   map[string]messageReader{},
		handlers:  map[string]MessageHandler{},
		queue:     make(chan kafka.Message, cfg.BufferSize),
		hook:      NoopHook{},
		l:         applogger.Nop(),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: map[partition]*sync.Mutex{},
	}
}

func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// WithConsumerHook replaces the lifecycle hook; nil is ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. A second handler for the same
// topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka.consumer.duplicate_handler", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.work()
	}
	for topic, r := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(topic, r)
	}
	c.l.Info("kafka.consumer.started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop ends fetching, lets workers drain what was already fetched and closes
// the readers. ctx bounds the drain.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		c.fetchWG.Wait()
		close(c.queue)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer drain: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka.consumer.close_reader", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka.consumer.close_dlq", applogger.Error(cerr))
			}
		}
		c.l.Info("kafka.consumer.stopped")
	})
	return err
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.fetchWG.Done()
	failures := 0
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			c.l.Warn("kafka.consumer.fetch", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)) {
				return
			}
			continue
		}
		failures = 0
		if km.Topic == "" {
			km.Topic = topic
		}
		select {
		case c.queue <- km:
			c.cfg.Metrics.setQueueDepth(topic, len(c.queue))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workWG.Done()
	for km := range c.queue {
		c.process(km)
	}
}

func (c *Consumer) process(km kafka.Message) {
	h, ok := c.handlers[km.Topic]
	if !ok {
		return
	}
	lock := c.partitionLock(km.Topic, km.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	attempts, err := c.handle(h, km)
	if errors.Is(err, errStopping) {
		return
	}

	outcome := "ok"
	commit := err == nil
	if err != nil {
		outcome = "failed"
		c.l.Error("kafka.consumer.handle",
			applogger.String("topic", km.Topic),
			applogger.Int("partition", km.Partition),
			applogger.Int64("offset", km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		if c.dlq != nil {
			if derr := c.deadLetter(km, attempts, err); derr != nil {
				c.l.Error("kafka.consumer.dlq", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(derr))
			} else {
				outcome = "dead_lettered"
				commit = true
			}
		}
	}
	if commit {
		c.commit(km)
	}
	c.cfg.Metrics.observeHandle(km.Topic, outcome, time.Since(start))
	c.cfg.Metrics.setQueueDepth(km.Topic, len(c.queue))
}

// handle runs the hook chain and handler, retrying handler errors up to
// RetryMax times. Hook errors are not retried.
func (c *Consumer) handle(h MessageHandler, km kafka.Message) (int, error) {
	attempts := 0
	for {
		attempts++
		hctx, hkm, data, err := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
		if err != nil {
			return attempts, err
		}
		err = h.Handle(hctx, data)
		c.hook.AfterHandle(hctx, km.Topic, hkm, data, err)
		if err == nil {
			return attempts, nil
		}
		c.hook.OnError(hctx, km.Topic, hkm, data, err)
		if attempts > c.cfg.RetryMax {
			return attempts, err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, errStopping
		}
	}
}

func (c *Consumer) deadLetter(km kafka.Message, attempts int, cause error) error {
	headers := append([]kafka.Header{}, km.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(km.Topic)},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
		kafka.Header{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     km.Key,
		Value:   km.Value,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
}

func (c *Consumer) commit(km kafka.Message) {
	r := c.readers[km.Topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Warn("kafka.consumer.commit",
		applogger.String("topic", km.Topic),
		applogger.Int64("offset", km.Offset),
		applogger.Error(err))
}

func (c *Consumer) partitionLock(topic string, id int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	k := partition{topic: topic, id: id}
	m, ok := c.partLocks[k]
	if !ok {
		m = &sync.Mutex{}
		c.partLocks[k] = m
	}
	return m
}

// sleep waits d unless the consumer stops first.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// backoffWithJitter doubles from min per attempt, caps at max and subtracts
// up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 31 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}
