package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider with per-entry expiry. Expired
// entries are dropped lazily on read and by Sweep.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]item
	now  func() time.Time
}

type item struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]item), now: time.Now}
}

// Get retrieves a cached value if present and not expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && c.now().After(it.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *MemoryProvider) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, it := range c.data {
		if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close clears the cache.
func (c *MemoryProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]item)
	return nil
}
