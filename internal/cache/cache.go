// Package cache holds upstream responses in memory for a fixed time window.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a fetched response is served without going upstream.
const DefaultTTL = 60 * time.Second

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Entry is a cached payload and the time it was fetched.
// Entries are replaced wholesale, never modified in place.
type Entry struct {
	Payload   any
	FetchedAt time.Time
}

// Fresh checks if the entry is still inside its TTL window
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Cache maps request URLs to their last successful payload.
// There is no size bound; stale entries are ignored on read and overwritten on the next store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	clock   Clock
}

// New creates a cache. A nil clock means the wall clock, a non-positive ttl means DefaultTTL.
func New(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the payload stored under key if it is still fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Fresh(c.clock.Now(), c.ttl) {
		return nil, false
	}
	return entry.Payload, true
}

// Set stores payload under key, stamped with the current time.
func (c *Cache) Set(key string, payload any) {
	c.SetAt(key, payload, c.clock.Now())
}

// SetAt stores payload under key with an explicit fetch time, normally the
// moment the request started rather than when it finished.
func (c *Cache) SetAt(key string, payload any, fetchedAt time.Time) {
	entry := Entry{Payload: payload, FetchedAt: fetchedAt}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Now reads the cache's clock.
func (c *Cache) Now() time.Time {
	return c.clock.Now()
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
