package infra

import (
	"sync"
	"time"
)

// CacheEntry holds a cached value with expiration.
type CacheEntry[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Cache is a thread-safe in-memory cache with TTL. Entries are replaced
// whole on Set; a reader never sees a partially written entry.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]CacheEntry[V]
	ttl     time.Duration
	clock   Clock
}

// NewCache creates a new cache with the given default TTL. A nil clock
// means the system clock.
func NewCache[K comparable, V any](ttl time.Duration, clock Clock) *Cache[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache[K, V]{
		entries: make(map[K]CacheEntry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// TTL returns the default time-to-live.
func (c *Cache[K, V]) TTL() time.Duration { return c.ttl }

// Get retrieves a value from the cache. Returns the zero value and false if
// not found or expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	entry, ok := c.Entry(key)
	return entry.Value, ok
}

// Entry returns the full entry for key if it is still fresh.
func (c *Cache[K, V]) Entry(key K) (CacheEntry[V], bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(entry.ExpiresAt) {
		return CacheEntry[V]{}, false
	}
	return entry, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.SetAt(key, value, c.clock.Now(), ttl)
}

// SetAt stores a value that was produced at storedAt; it expires at storedAt+ttl.
func (c *Cache[K, V]) SetAt(key K, value V, storedAt time.Time, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = CacheEntry[V]{
		Value:     value,
		StoredAt:  storedAt,
		ExpiresAt: storedAt.Add(ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	c.entries = make(map[K]CacheEntry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries. Can be called periodically.
func (c *Cache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for k, v := range c.entries {
		if !now.Before(v.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
