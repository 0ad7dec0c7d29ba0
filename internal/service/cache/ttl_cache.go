package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is an in-process map with per-entry expiry, used for short-lived
// quote snapshots and alert cooldowns.
type TTLCache[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	max int
	now func() time.Time
}

// NewTTLCache bounds the map at maxEntries (<= 0 is unbounded). A Set that
// would exceed it first purges expired entries, then drops an arbitrary one.
func NewTTLCache[V any](maxEntries int) *TTLCache[V] {
	return &TTLCache[V]{m: make(map[string]entry[V]), max: maxEntries, now: time.Now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

// Set stores v; ttl <= 0 keeps it until overwritten.
func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; !ok && c.max > 0 && len(c.m) >= c.max {
		c.purgeLocked()
		for k := range c.m {
			if len(c.m) < c.max {
				break
			}
			delete(c.m, k)
		}
	}
	c.m[key] = entry[V]{v: v, exp: exp}
}

// Purge drops expired entries and returns how many remain.
func (c *TTLCache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	return len(c.m)
}

func (c *TTLCache[V]) purgeLocked() {
	now := c.now()
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
}
