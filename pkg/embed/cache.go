package embed

import (
	"sync"
	"time"
)

// cacheEntry holds a cached vector with a timestamp for TTL expiration.
type cacheEntry struct {
	vector    []float64
	fetchedAt time.Time
}

// Cache is a thread-safe in-memory TTL cache of computed embeddings,
// keyed by the input text. Expired entries are cleaned up lazily on Get
// — no background goroutine. The Hybrid Retriever and the Summarizer
// call Text directly and do not use a Cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

// NewCache creates a new embedding cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached embedding for text if present and not expired.
func (c *Cache) Get(text string) ([]float64, bool) {
	c.mu.RLock()
	entry, ok := c.entries[text]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(entry.fetchedAt) > c.ttl {
		c.mu.Lock()
		if current, ok := c.entries[text]; ok && time.Since(current.fetchedAt) > c.ttl {
			delete(c.entries, text)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.vector, true
}

// Set stores vec for text with the current timestamp.
func (c *Cache) Set(text string, vec []float64) {
	c.mu.Lock()
	c.entries[text] = &cacheEntry{vector: vec, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// TextCached returns Text(text), transparently caching the result.
func (c *Cache) TextCached(text string) []float64 {
	if v, ok := c.Get(text); ok {
		return v
	}
	v := Text(text)
	c.Set(text, v)
	return v
}
