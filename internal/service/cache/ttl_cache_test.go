package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[float64](0)
	c.now = func() time.Time { return now }

	c.Set("AAPL", 190.5, 15*time.Second)
	c.Set("MSFT", 410, 0)

	v, ok := c.Get("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 190.5, v)

	now = now.Add(16 * time.Second)
	_, ok = c.Get("AAPL")
	assert.False(t, ok)
	_, ok = c.Get("MSFT")
	assert.True(t, ok)

	c.Set("NVDA", 1, time.Second)
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.Purge())
}

func TestTTLCache_Bounded(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[int](2)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Minute)
	now = now.Add(2 * time.Second)

	// expired "a" makes room without evicting "b"
	c.Set("c", 3, time.Minute)
	_, ok := c.Get("b")
	assert.True(t, ok)

	c.Set("d", 4, time.Minute)
	assert.Equal(t, 2, c.Purge())
	v, ok := c.Get("d")
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	c.Set("d", 5, time.Minute)
	assert.Equal(t, 2, c.Purge(), "overwrite does not evict")
}
