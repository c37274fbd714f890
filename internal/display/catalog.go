package display

import (
	"context"
	"log/slog"
	"sync"

	"signage-sync/internal/cache"
	"signage-sync/internal/platform/metrics"
)

const (
	// CatalogCacheKey is the cache key holding the approved-media snapshot.
	CatalogCacheKey = "approved_media"
	// DefaultCatalogTTLMinutes bounds how stale a snapshot may get when no
	// mutation invalidates it.
	DefaultCatalogTTLMinutes = 5
)

// Catalog reads the ordered approved-media list through the cache.
// Reads fail soft: a storage error yields an empty list, never an error.
type Catalog struct {
	store   Store
	cache   cache.Cache[[]MediaEntry]
	ttl     int
	log     *slog.Logger
	metrics *metrics.Metrics

	// mu orders cache writes against Invalidate. version is bumped on every
	// invalidation; a fill started under an older version is not stored.
	mu      sync.Mutex
	version uint64
}

// NewCatalog returns a Catalog over store. ttlMinutes <= 0 selects
// DefaultCatalogTTLMinutes. Metrics may be nil.
func NewCatalog(store Store, c cache.Cache[[]MediaEntry], ttlMinutes int, log *slog.Logger, m *metrics.Metrics) *Catalog {
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultCatalogTTLMinutes
	}
	return &Catalog{store: store, cache: c, ttl: ttlMinutes, log: log, metrics: m}
}

// List returns the approved media in play order. The returned slice is
// shared with the cache and must not be modified.
func (c *Catalog) List(ctx context.Context) []MediaEntry {
	if items, ok := c.cache.Get(CatalogCacheKey); ok {
		c.observe(true, len(items))
		return items
	}

	c.mu.Lock()
	version := c.version
	c.mu.Unlock()

	items, err := c.store.ListApprovedMedia(ctx)
	if err != nil {
		c.log.Error("list approved media failed", slog.String("op", "catalog.list"), slog.String("error", err.Error()))
		return []MediaEntry{}
	}
	if items == nil {
		items = []MediaEntry{}
	}

	c.mu.Lock()
	if c.version == version {
		c.cache.Set(CatalogCacheKey, items, c.ttl)
	}
	c.mu.Unlock()
	c.observe(false, len(items))
	return items
}

// Count returns the approved count straight from storage, bypassing the cache.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	return c.store.CountApproved(ctx)
}

// Invalidate drops the cached snapshot; the next List reloads from storage.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.cache.Del(CatalogCacheKey)
}

// PatchDuration updates the duration of id inside the cached snapshot
// without invalidating it. It reports whether a cached entry was patched.
func (c *Catalog) PatchDuration(id MediaID, seconds float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, ok := c.cache.Get(CatalogCacheKey)
	if !ok {
		return false
	}
	i := indexOf(items, id)
	if i < 0 {
		return false
	}

	// Copy on write: readers may still hold the old slice.
	patched := make([]MediaEntry, len(items))
	copy(patched, items)
	d := seconds
	patched[i].DurationSeconds = &d
	c.cache.Set(CatalogCacheKey, patched, c.ttl)
	return true
}

func (c *Catalog) observe(hit bool, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.IncCatalogLookup(hit)
	c.metrics.SetCatalogItems(n)
}
