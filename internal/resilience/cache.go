// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resilience wraps external calls with a TTL cache, classified
// retries with exponential backoff, and a stale-cache fallback.
package resilience

import (
	"sync"
	"time"
)

// entry is one cached payload with its insertion time and freshness window.
type entry struct {
	payload  any
	storedAt time.Time
	ttl      time.Duration
}

// TTLCache is a concurrency-safe map of cached payloads. Expired entries are
// evicted lazily on read. The clock is injectable so tests can control time.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewTTLCache returns an empty cache using the wall clock.
func NewTTLCache() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewTTLCacheWithClock returns an empty cache using the given clock.
func NewTTLCacheWithClock(now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the fresh payload for key, if present and within its TTL.
// An expired entry is removed and reported as a miss.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > e.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry meanwhile.
		if cur, still := c.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

// GetStale returns the payload for key even when its TTL has lapsed, as long
// as the entry is younger than staleTTL. Used as a fallback after retries
// exhaust, trading freshness for availability.
func (c *TTLCache) GetStale(key string, staleTTL time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > staleTTL {
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the given freshness window. Concurrent
// writers to the same key race benignly; last writer wins.
func (c *TTLCache) Set(key string, payload any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
