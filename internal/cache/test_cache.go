package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Cache = (*TestCache)(nil)

// TestCache is an in-memory Cache used in unit tests. TTLs are honored
// lazily on Get.
type TestCache struct {
	mutex   sync.Mutex
	entries map[string]testCacheEntry

	GetCalls int
	SetCalls int
}

type testCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewTestCache() *TestCache {
	return &TestCache{
		entries: map[string]testCacheEntry{},
	}
}

func (c *TestCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.GetCalls++

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *TestCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.SetCalls++

	entry := testCacheEntry{value: value}
	if ttl != 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
}

func (c *TestCache) Invalidate(_ context.Context, pattern string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}
