// Package cache provides a small TTL-bounded value cache used by the
// dashboard aggregation endpoint. Unlike its predecessor it takes an
// injected clock and is invalidated explicitly on writes rather than
// serving stale figures until expiry.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time; swappable in tests.
type Clock func() time.Time

// TTL caches a single value for a bounded duration.
type TTL struct {
	ttl   time.Duration
	clock Clock

	mu    sync.RWMutex
	value any
	setAt time.Time
	set   bool
}

// New returns a cache with the given TTL and the wall clock.
func New(ttl time.Duration) *TTL {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock returns a cache with an injected clock.
func NewWithClock(ttl time.Duration, clock Clock) *TTL {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTL{ttl: ttl, clock: clock}
}

// Get returns the cached value when it is still fresh.
func (c *TTL) Get() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set || c.clock().Sub(c.setAt) >= c.ttl {
		return nil, false
	}
	return c.value, true
}

// Set stores a fresh value.
func (c *TTL) Set(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.setAt = c.clock()
	c.set = true
}

// Invalidate drops the cached value. Called after any mutation that
// changes the aggregates the cache holds.
func (c *TTL) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.set = false
}
