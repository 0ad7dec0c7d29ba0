package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key (client IP or API consumer).
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*client
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

// New allows perMinute requests per key with the given burst. Keys idle for longer than
// ten minutes are forgotten on the next Allow.
func New(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:       make(map[string]*client),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: 10 * time.Minute,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.m[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = c
		l.evict(now)
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

func (l *Limiter) evict(now time.Time) {
	for k, c := range l.m {
		if now.Sub(c.seen) > l.idleTTL && !c.seen.IsZero() {
			delete(l.m, k)
		}
	}
}
