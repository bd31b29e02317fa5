package sourceclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

type cachedPage struct {
	records []types.RawTransaction
	next    *Cursor
}

type cacheEntry struct {
	page      cachedPage
	expiresAt time.Time
}

// responseCache keeps recently fetched pages keyed by request so repeated
// reads within one aggregation window skip the upstream. Entries expire
// lazily on access.
type responseCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(cursor Cursor) string {
	return fmt.Sprintf("%d-%d/%d", cursor.StartHeight, cursor.EndHeight, cursor.Page)
}

func (c *responseCache) get(key string) (cachedPage, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return cachedPage{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return cachedPage{}, false
	}

	metrics.IncSourceCacheHit()
	return entry.page, true
}

func (c *responseCache) put(key string, page cachedPage) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{page: page, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
