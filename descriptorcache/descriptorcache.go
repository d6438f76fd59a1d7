// Package descriptorcache holds per-file descriptors for the duration of one analysis run.
package descriptorcache

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"dupfinder/metrics"
)

// DefaultCapacity bounds memory on very large collections
const DefaultCapacity = 500_000

// Cache maps a file identity to its descriptor. Entries never expire; once the
// capacity is reached new descriptors are returned to the caller but not stored.
type Cache[T any] struct {
	name     string
	capacity int
	store    *gocache.Cache
	// serialises the capacity check with the insert
	insertMu sync.Mutex
}

// New creates an empty cache. name labels the cache in metrics.
func New[T any](name string, capacity int) *Cache[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[T]{
		name:     name,
		capacity: capacity,
		store:    gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached descriptor for key
func (c *Cache[T]) Get(key string) (T, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// GetOrCompute returns the cached descriptor for key, computing it on a miss.
// Concurrent misses on the same key may compute more than once; only the first
// result is stored and every caller gets that stored value when there is one.
func (c *Cache[T]) GetOrCompute(key string, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}

	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}

	c.insertMu.Lock()
	defer c.insertMu.Unlock()

	if existing, ok := c.Get(key); ok {
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return existing, nil
	}
	if c.store.ItemCount() >= c.capacity {
		metrics.CacheRequests.WithLabelValues(c.name, "uncached").Inc()
		return v, nil
	}

	// Add only fails when the key exists, which insertMu rules out
	_ = c.store.Add(key, v, gocache.NoExpiration)
	metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.store.ItemCount()))
	return v, nil
}

// Len returns the number of stored descriptors
func (c *Cache[T]) Len() int {
	return c.store.ItemCount()
}

// Capacity returns the maximum number of stored descriptors
func (c *Cache[T]) Capacity() int {
	return c.capacity
}

// Clear drops every entry. Call it once before a run, never during one.
func (c *Cache[T]) Clear() {
	c.insertMu.Lock()
	defer c.insertMu.Unlock()
	c.store.Flush()
	metrics.CacheEntries.WithLabelValues(c.name).Set(0)
}
