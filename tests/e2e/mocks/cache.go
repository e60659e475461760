package mocks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/godilite/customer-intel/pkg/cache"
)

type cacheEntry struct {
	raw    []byte
	expiry time.Time
}

// TrackingCache is an in-process cache.Cacher that stores JSON like the redis
// implementation does and counts calls.
type TrackingCache struct {
	mu          sync.Mutex
	data        map[string]cacheEntry
	Hits        int
	Misses      int
	Sets        int
	Invalidated int64
}

var _ cache.Cacher = (*TrackingCache)(nil)

func NewTrackingCache() *TrackingCache {
	return &TrackingCache{data: make(map[string]cacheEntry)}
}

func (c *TrackingCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiry) {
		c.Misses++
		return cache.ErrMiss
	}
	c.Hits++
	return json.Unmarshal(entry.raw, dest)
}

func (c *TrackingCache) Set(ctx context.Context, key string, value any, exp time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	c.data[key] = cacheEntry{raw: raw, expiry: time.Now().Add(exp)}
	return nil
}

func (c *TrackingCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return 0, cache.ErrMiss
	}
	left := time.Until(entry.expiry)
	if left <= 0 {
		return 0, cache.ErrMiss
	}
	return left, nil
}

func (c *TrackingCache) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	c.Invalidated += n
	return n, nil
}

func (c *TrackingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *TrackingCache) Snapshot() (hits, misses, sets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Hits, c.Misses, c.Sets
}

func (c *TrackingCache) Close() error {
	return nil
}
