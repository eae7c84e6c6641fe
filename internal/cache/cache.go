// Package cache implements the in-memory credential cache that sits in front
// of provider dispatch: a successful IssueCredential result is cached under
// its request key until its TTL, minus a safety buffer, elapses.
//
// The map-plus-mutex-plus-sweep shape follows the active-token bookkeeping
// used by a small JIT token broker elsewhere in the pack, retargeted here
// from tokens to provider-issued credentials.
package cache

import (
	"sync"
	"time"
)

// defaultSafetyBuffer is subtracted from a credential's reported expiry when
// deciding whether a cached entry is still usable, so callers never hand out
// a credential that is about to expire mid-use.
const defaultSafetyBuffer = 5 * time.Minute

// Entry is a cached value together with the absolute time it was put in and
// when the upstream credential itself expires.
type Entry struct {
	Value     any
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Stats summarizes cache activity since construction; Clear empties the
// cache but does not reset the counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Cache is a TTL-aware, in-memory, safety-buffered credential cache. The
// zero value is not usable; construct with New.
type Cache struct {
	mu     sync.Mutex
	data   map[string]Entry
	buffer time.Duration
	stats  Stats
}

// New returns a Cache using the default five-minute safety buffer.
func New() *Cache {
	return &Cache{data: make(map[string]Entry), buffer: defaultSafetyBuffer}
}

// SetBuffer overrides the safety buffer subtracted from expiresAt on
// admission checks. Intended for tests and for operators tuning cache
// behavior against a provider whose credentials have unusually short TTLs.
func (c *Cache) SetBuffer(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = d
}

// Put admits value under key if expiresAt, minus the configured safety
// buffer, is still in the future. A credential whose usable window has
// already closed is not cached at all — Get for that key simply misses.
func (c *Cache) Put(key string, value any, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !time.Now().Before(expiresAt.Add(-c.buffer)) {
		return
	}
	c.data[key] = Entry{Value: value, CachedAt: time.Now(), ExpiresAt: expiresAt}
}

// Get returns the cached value for key, if present and still within its
// safety-buffered window. A stale entry is evicted on read.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !time.Now().Before(entry.ExpiresAt.Add(-c.buffer)) {
		delete(c.data, key)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Clear removes every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Entry)
}

// EvictExpired sweeps the cache and removes every entry past its
// safety-buffered window, returning the number removed. Get already evicts
// lazily on read; this exists for a periodic background sweep so cache size
// does not grow unbounded with keys nobody reads again.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.data {
		if !now.Before(entry.ExpiresAt.Add(-c.buffer)) {
			delete(c.data, key)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	return removed
}

// Stats returns a snapshot of cache activity counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.data)
	return s
}
