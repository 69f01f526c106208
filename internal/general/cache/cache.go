// Package cache provides a generic TTL cache
package cache

import (
	"sync"
	"time"
)

// item wraps a cached value with its expiration time
type item[T any] struct {
	value     T
	expiresAt time.Time // zero means never
}

// Cache is a generic thread-safe cache. A TTL of zero keeps entries until
// they are deleted.
type Cache[T any] struct {
	items map[string]item[T]
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// New creates a cache with the specified TTL
func New[T any](ttl time.Duration) *Cache[T] {
	c := &Cache[T]{
		items: make(map[string]item[T]),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup()
	}
	return c
}

// Get retrieves a value, returning (value, true) if found and not expired
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || c.expired(it, c.now()) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Set stores a value with the cache's TTL
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := item[T]{value: value}
	if c.ttl > 0 {
		it.expiresAt = c.now().Add(c.ttl)
	}
	c.items[key] = it
}

// Delete removes a key from the cache
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Size returns the number of items (including expired)
func (c *Cache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the background cleanup goroutine
func (c *Cache[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[T]) expired(it item[T], now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

func (c *Cache[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[T]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, it := range c.items {
		if c.expired(it, now) {
			delete(c.items, key)
		}
	}
}
