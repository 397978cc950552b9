package metadata

import (
	"sync"
	"time"
)

// VariantCache is an in-memory TTL cache for title-variant lookups. It is
// injected into the client rather than living as package state so tests and
// callers control its lifetime.
type VariantCache struct {
	mu    sync.RWMutex
	items map[string]variantEntry
	ttl   time.Duration
}

type variantEntry struct {
	variants  []string
	expiresAt time.Time
}

// NewVariantCache creates a cache with the given TTL.
func NewVariantCache(ttl time.Duration) *VariantCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VariantCache{
		items: make(map[string]variantEntry),
		ttl:   ttl,
	}
}

// Get returns the cached variants for a series if still fresh.
func (c *VariantCache) Get(seriesID string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[seriesID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.variants, true
}

// Set stores the variants for a series.
func (c *VariantCache) Set(seriesID string, variants []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[seriesID] = variantEntry{
		variants:  variants,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate removes a series from the cache.
func (c *VariantCache) Invalidate(seriesID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, seriesID)
}

// Len returns the number of cached entries, expired or not.
func (c *VariantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
