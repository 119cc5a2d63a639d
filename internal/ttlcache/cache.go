// Package ttlcache provides an in-memory cache with per-entry expiry.
// Expired entries are dropped lazily on access and swept periodically in the
// background so long-idle keys do not pin memory.
package ttlcache

import (
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL map safe for concurrent use. The zero value is not usable;
// construct with New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	done    chan struct{}
	once    sync.Once
}

// New returns a running cache. sweepInterval <= 0 uses the default; the sweep
// goroutine stops when Stop is called.
func New[V any](sweepInterval time.Duration) *Cache[V] {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		done:    make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Set stores value under key for ttl. A non-positive ttl stores nothing, so
// callers can pass zero to mark a key uncacheable without branching.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Get returns the live value for key. The second return is false for missing
// or expired keys; an expired entry is removed on the spot.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have replaced it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until the
// next sweep touches them.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
