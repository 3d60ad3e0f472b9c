package timetable

import (
	"sync"
	"time"

	"StudySync/internal/clock"
)

// DefaultCacheTTL is how long a fetched timetable snapshot stays valid.
const DefaultCacheTTL = 5 * time.Minute

// CacheState is the lifecycle position of the cache.
type CacheState string

const (
	CacheEmpty       CacheState = "empty"
	CacheValid       CacheState = "valid"
	CacheStale       CacheState = "stale"
	CacheInvalidated CacheState = "invalidated"
)

// Cache holds one sorted timetable snapshot for a fixed TTL. It is shared by every reader
// in the process and never persisted.
type Cache struct {
	mu          sync.Mutex
	clock       clock.Clock
	ttl         time.Duration
	snapshot    []Entry
	storedAt    time.Time
	filled      bool
	invalidated bool
}

// NewCache creates an empty cache. A non-positive ttl falls back to DefaultCacheTTL.
func NewCache(c clock.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{clock: c, ttl: ttl}
}

// Get returns a copy of the snapshot while it is valid.
func (c *Cache) Get() ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != CacheValid {
		return nil, false
	}
	out := make([]Entry, len(c.snapshot))
	copy(out, c.snapshot)
	return out, true
}

// Put stores a new snapshot stamped with the current time.
func (c *Cache) Put(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = make([]Entry, len(entries))
	copy(c.snapshot, entries)
	c.storedAt = c.clock.Now()
	c.filled = true
	c.invalidated = false
}

// Invalidate drops the snapshot regardless of its age.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	if c.filled {
		c.invalidated = true
	}
	c.filled = false
}

// State reports where the cache is in its lifecycle.
func (c *Cache) State() CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Cache) state() CacheState {
	switch {
	case c.invalidated:
		return CacheInvalidated
	case !c.filled:
		return CacheEmpty
	case c.clock.Now().Sub(c.storedAt) >= c.ttl:
		return CacheStale
	}
	return CacheValid
}
