package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries; the Kafka producer implements it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	// TimeInterval between flushes (default 30s).
	TimeInterval time.Duration
	// CountThreshold of distinct entries that forces an early flush (default 100).
	CountThreshold int
	Topic          string
	Service        string
	Publisher      Publisher
	// OnPublishError is called when a batch cannot be shipped; it defaults
	// to a line on stderr since the logger itself may be the thing failing.
	OnPublishError func(err error, dropped int)
}

// AggregatedLogEntry is one distinct (level, message, fields, caller) with
// the number of times it was logged during a flush window.
type AggregatedLogEntry struct {
	Service   string                 `json:"service,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error entries and publishes them in batches.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry

	stop     chan struct{}
	inflight sync.WaitGroup
	loopDone chan struct{}
	once     sync.Once
	now      func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.OnPublishError == nil {
		cfg.OnPublishError = func(err error, dropped int) {
			fmt.Fprintf(os.Stderr, "log collector: dropped %d entries: %v\n", dropped, err)
		}
	}
	c := &LogCollector{
		cfg:      cfg,
		entries:  make(map[string]*AggregatedLogEntry),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		now:      time.Now,
	}
	go c.loop()
	return c
}

func (c *LogCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	key := entryKey(level, message, fields, caller)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Service:   c.cfg.Service,
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []AggregatedLogEntry
	if len(c.entries) >= c.cfg.CountThreshold {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			c.publish(batch)
		}()
	}
}

// entryKey hashes the JSON form; map keys marshal sorted, so field order does not matter.
func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	return out
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	if batch != nil {
		c.publish(batch)
	}
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		c.cfg.OnPublishError(err, len(batch))
	}
}

func (c *LogCollector) loop() {
	defer close(c.loopDone)
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			return
		}
	}
}

// Close stops the flush loop, waits for in-flight batches and publishes the rest.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		<-c.loopDone
		c.inflight.Wait()
		c.flush()
	})
}
