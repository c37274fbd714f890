// Package cache provides a small expiring key-value cache with in-memory and
// Redis backends. TTLs are expressed in minutes; a TTL of 0 never expires.
package cache

import (
	"sync"
	"time"
)

// Cache is an expiring key-value store. Expired entries are purged lazily:
// a Get or Has that finds an expired entry deletes it and reports absent.
type Cache[V any] interface {
	// Get returns the value stored under key, or false if absent or expired.
	Get(key string) (V, bool)
	// Set stores value under key. ttlMinutes <= 0 disables expiry.
	Set(key string, value V, ttlMinutes int)
	// Del removes key. Deleting a missing key is a no-op.
	Del(key string)
	// Has reports whether key is present and not expired.
	Has(key string) bool
	// Clear removes every entry.
	Clear()
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64 // expired entries purged on access
	Size      int
}

type entry[V any] struct {
	value   V
	expires time.Time // zero means no expiry
}

// expired reports whether the entry is past its expiry. An entry read at
// exactly its expiry instant is still live.
func (e entry[V]) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Option configures a Memory cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Memory is a concurrency-safe in-memory Cache.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
	stats   Stats
}

// NewMemory returns an empty in-memory cache.
func NewMemory[V any](opts ...Option) *Memory[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		now:     o.now,
	}
}

// Get implements Cache.Get.
func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookupLocked(key)
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set implements Cache.Set.
func (c *Memory[V]) Set(key string, value V, ttlMinutes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value}
	if ttlMinutes > 0 {
		e.expires = c.now().Add(time.Duration(ttlMinutes) * time.Minute)
	}
	c.entries[key] = e
	c.stats.Sets++
}

// Del implements Cache.Del.
func (c *Memory[V]) Del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Has implements Cache.Has.
func (c *Memory[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok
}

// Clear implements Cache.Clear.
func (c *Memory[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Stats returns a copy of the cache counters.
func (c *Memory[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// lookupLocked returns the live entry for key, purging it if expired.
// Caller must hold c.mu.
func (c *Memory[V]) lookupLocked(key string) (entry[V], bool) {
	e, ok := c.entries[key]
	if !ok {
		return e, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.stats.Evictions++
		return entry[V]{}, false
	}
	return e, true
}
