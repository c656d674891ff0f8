package cache

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// TTL tiers for the data astrogod caches
const (
	// Knowledge base refresh from remote catalogs
	TTLKnowledgeBase = 24 * time.Hour

	// Upstream driver catalog listing
	TTLCatalog = 1 * time.Hour

	// Verbose per-device USB descriptors (manufacturer/product strings)
	TTLEnrichment = 10 * time.Minute
)

// Entry holds a cached value with expiration
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
	FetchedAt time.Time
}

// Cache provides thread-safe TTL-based caching
type Cache[V any] struct {
	mu      sync.RWMutex
	clock   clock.PassiveClock
	entries map[string]*Entry[V]
}

// New creates a cache using the wall clock
func New[V any]() *Cache[V] {
	return NewWithClock[V](clock.RealClock{})
}

// NewWithClock creates a cache whose expiry is judged by clk
func NewWithClock[V any](clk clock.PassiveClock) *Cache[V] {
	return &Cache[V]{
		clock:   clk,
		entries: make(map[string]*Entry[V]),
	}
}

// Get returns the value for key and whether it was present and fresh
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.ExpiresAt) {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// GetEntry returns the entry even when expired (for checking age, etc.)
func (c *Cache[V]) GetEntry(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return *entry, true
}

// Set stores a value with the given TTL
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.entries[key] = &Entry[V]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		FetchedAt: now,
	}
}

// Delete removes an entry from cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Cleanup removes expired entries
func (c *Cache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, v := range c.entries {
		if now.After(v.ExpiresAt) {
			delete(c.entries, k)
		}
	}
}
