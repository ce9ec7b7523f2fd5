package suggest

import (
	"sync"
	"time"

	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
)

// Cache is a bounded TTL cache for provider results, injected into the
// service so its lifetime and size are explicit. When full, the entry
// closest to expiry is evicted.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	result    suggestion.Result
	expiresAt time.Time
}

// NewCache builds a cache with the given TTL and capacity. Non-positive
// arguments fall back to 5 minutes and 256 entries.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the cached result, expiring stale entries lazily.
func (c *Cache) Get(key string) (*suggestion.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	out := entry.result
	out.Suggestions = append([]suggestion.Suggestion(nil), entry.result.Suggestions...)
	return &out, true
}

// Put stores a result under key, evicting the soonest-to-expire entry when
// the cache is full.
func (c *Cache) Put(key string, result suggestion.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictOldestLocked()
		}
	}

	result.Suggestions = append([]suggestion.Suggestion(nil), result.Suggestions...)
	c.entries[key] = cacheEntry{result: result, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
