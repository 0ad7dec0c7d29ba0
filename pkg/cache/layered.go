package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache fronts a shared cache (normally Redis) with an in-process LRU.
// Writes go through to the shared layer first; reads fill the local layer.
type LayeredCache struct {
	local  *MemoryCache
	shared Service
	// localTTL caps how long a value read from the shared layer stays local.
	localTTL time.Duration
}

type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	size     int
	localTTL time.Duration
}

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *layeredConfig) { c.size = size }
}

func WithLayeredLocalTTL(ttl time.Duration) LayeredOption {
	return func(c *layeredConfig) { c.localTTL = ttl }
}

func NewLayeredCache(shared Service, opts ...LayeredOption) *LayeredCache {
	cfg := layeredConfig{size: 1000, localTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		local:    NewMemoryCache(time.Minute, WithMemoryMaxSize(cfg.size)),
		shared:   shared,
		localTTL: cfg.localTTL,
	}
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := c.local.lookup(key); ok {
		return decode(data, dest)
	}

	var raw []byte
	if err := c.shared.Get(ctx, key, &raw); err != nil {
		return err
	}
	c.local.store(key, raw, c.localTTL)
	return decode(raw, dest)
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := c.shared.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	local := c.localTTL
	if ttl > 0 && ttl < local {
		local = ttl
	}
	c.local.store(key, data, local)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.local.Delete(ctx, keys...)
	return c.shared.Delete(ctx, keys...)
}

// Close stops the local janitor and closes the shared layer.
func (c *LayeredCache) Close() error {
	return errors.Join(c.local.Close(), c.shared.Close())
}

var _ Service = (*LayeredCache)(nil)
