package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// defaultMemoryTTL applies when Set is called without an expiry.
const defaultMemoryTTL = 24 * time.Hour

type memoryEntry struct {
	key      string
	data     []byte
	expireAt time.Time
}

// MemoryCache is a size-bounded in-process LRU with per-key expiry.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the number of entries; the least recently used
// entry is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryCache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

func withClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache starts a janitor that drops expired entries every
// cleanupInterval; Close stops it. A zero interval disables the janitor.
func NewMemoryCache(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: 1000,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := c.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (c *MemoryCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if !c.now().Before(e.expireAt) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.data, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	c.store(key, data, ttl)
	return nil
}

func (c *MemoryCache) store(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expireAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.data, e.expireAt = data, expireAt
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&memoryEntry{key: key, data: data, expireAt: expireAt})
	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if el, ok := c.items[k]; ok {
			c.removeElement(el)
		}
	}
	return nil
}

// Len reports the number of entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*memoryEntry).key)
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*memoryEntry).expireAt) {
			c.removeElement(el)
		}
		el = prev
	}
}

func (c *MemoryCache) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

var _ Service = (*MemoryCache)(nil)
