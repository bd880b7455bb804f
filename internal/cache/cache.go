// Package cache provides a process-local, namespaced TTL cache used to
// memoize derived Git views.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// entry is one cached value with its absolute expiry.
type entry struct {
	data      any
	expiresAt time.Time
}

// Stats reports the current cache contents.
type Stats struct {
	Items int      `json:"items"`
	Keys  []string `json:"keys"`
}

// Cache is a thread-safe in-memory TTL store. Keys are composed as
// <namespace>:<segment>:..., typically repo:<id>:commits:<branch>.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	clock      clockwork.Clock
}

// New creates a cache with the given default TTL.
func New(defaultTTL time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		clock:      clock,
	}
}

// Get returns the value for key, or miss. An expired entry is removed
// and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores value under key with the given TTL; ttl <= 0 uses the
// default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{data: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// ClearNamespace removes all keys with the given prefix. Returns the
// number removed.
func (c *Cache) ClearNamespace(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats returns the live (non-expired) item count and sorted keys.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Before(e.expiresAt) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return Stats{Items: len(keys), Keys: keys}
}
