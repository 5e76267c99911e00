package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated entries somewhere durable (Kafka in serve mode).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectorConfig struct {
	FlushInterval  time.Duration
	CountThreshold int
	Topic          string
	Publisher      Publisher
}

// Digest is one deduplicated warn/error line with occurrence bookkeeping.
type Digest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector deduplicates repeated warn/error entries and publishes them in
// batches, either on a timer or once CountThreshold distinct entries pile up.
type Collector struct {
	cfg     CollectorConfig
	mu      sync.Mutex
	entries map[string]*Digest
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewCollector(cfg *CollectorConfig) *Collector {
	c := &Collector{
		cfg:     *cfg,
		entries: make(map[string]*Digest),
		stop:    make(chan struct{}),
	}
	if c.cfg.FlushInterval <= 0 {
		c.cfg.FlushInterval = 30 * time.Second
	}
	if c.cfg.CountThreshold <= 0 {
		c.cfg.CountThreshold = 100
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Collector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	if d, ok := c.entries[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		c.entries[key] = &Digest{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	var batch []Digest
	if len(c.entries) >= c.cfg.CountThreshold {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		go c.publish(batch)
	}
}

// Pending reports the number of distinct entries waiting to be flushed.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Collector) loop() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Flush()
		case <-c.stop:
			c.Flush()
			return
		}
	}
}

// Flush publishes everything collected so far and blocks until done.
func (c *Collector) Flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	if len(batch) > 0 {
		c.publish(batch)
	}
}

func (c *Collector) drainLocked() []Digest {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]Digest, 0, len(c.entries))
	for _, d := range c.entries {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	c.entries = make(map[string]*Digest)
	return out
}

func (c *Collector) publish(batch []Digest) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "log collector: publish failed: %v\n", err)
	}
}

func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func fingerprint(level, message string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
