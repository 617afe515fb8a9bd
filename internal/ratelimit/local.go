// Package ratelimit throttles inbound websocket frames per peer, either in
// process or across processes through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config is the budget shared by both limiters: Burst frames per Interval.
type Config struct {
	Burst    int
	Interval time.Duration
}

func (c Config) normalized() Config {
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	return c
}

// Local is a token bucket per key kept in memory.
type Local struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	idleTTL time.Duration
	now     func() time.Time

	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal creates an in-process limiter. Buckets idle for longer than ten
// intervals are forgotten.
func NewLocal(cfg Config) *Local {
	cfg = cfg.normalized()
	return &Local{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * cfg.Interval,
		now:     time.Now,
	}
}

// Allow spends one token from key's bucket.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		every := l.cfg.Interval / time.Duration(l.cfg.Burst)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.sweep(now)
	return allowed, nil
}

// sweep runs at most once per idleTTL.
func (l *Local) sweep(now time.Time) {
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now

	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}
