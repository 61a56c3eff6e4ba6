package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// TTL is a small thread-safe cache with per-entry expiry. The wait
// screen polls meeting status every tick; the cache keeps those polls
// from turning into one backend request per second.
type TTL[T any] struct {
	mu         sync.RWMutex
	items      map[string]entry[T]
	defaultTTL time.Duration
}

// New creates a cache whose entries live for defaultTTL. Expired
// entries are evicted lazily on access; no background goroutine.
func New[T any](defaultTTL time.Duration) *TTL[T] {
	return &TTL[T]{
		items:      make(map[string]entry[T]),
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached value if present and fresh.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		var zero T
		return zero, false
	}
	return item.value, true
}

// Set stores a value with the default TTL.
func (c *TTL[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL.
func (c *TTL[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[T]{value: value, expiresAt: time.Now().Add(ttl)}

	// Lazy sweep: drop whatever already expired while writing anyway.
	now := time.Now()
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}

// Delete removes one entry; callers invalidate after state-changing
// requests so the next read is authoritative.
func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports live (unexpired) entries.
func (c *TTL[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, it := range c.items {
		if !now.After(it.expiresAt) {
			n++
		}
	}
	return n
}
