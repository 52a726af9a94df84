package dashboard

import (
	"sync"
	"time"
)

// AggregateCache provides in-memory caching for aggregates
type AggregateCache struct {
	data map[string]*cacheEntry
	ttl  time.Duration
	mu   sync.RWMutex
	now  func() time.Time
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      interface{}
	expiration time.Time
}

// NewAggregateCache creates a new aggregate cache. A non-positive ttl disables caching.
func NewAggregateCache(ttl time.Duration) *AggregateCache {
	return &AggregateCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a value from the cache
func (c *AggregateCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value in the cache
func (c *AggregateCache) Set(key string, value interface{}) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// Invalidate drops every entry
func (c *AggregateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*cacheEntry)
}
