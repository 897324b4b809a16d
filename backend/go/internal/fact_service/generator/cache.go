package generator

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/util"
	"time"
)

// CacheKey identifies a reusable generation result.
type CacheKey struct {
	Category   models.Category
	Difficulty models.Difficulty
	Count      int
}

// KeyFor returns the cache key of a request.
func KeyFor(req Request) CacheKey {
	return CacheKey{Category: req.Category, Difficulty: req.Difficulty, Count: req.Count}
}

// DefaultCacheTTL is how long a generated fact is reused for the same key.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheCapacity bounds the number of cached keys.
const DefaultCacheCapacity = 1024

// FactCache stores the last fact generated per key. Stale entries are dropped
// when read and replaced when written.
type FactCache struct {
	lru *util.LRUCache[CacheKey, models.Fact]
}

// NewFactCache creates a cache. A zero ttl or capacity uses the defaults; now may be nil.
func NewFactCache(ttl time.Duration, capacity int, now func() time.Time) *FactCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	lru, _ := util.NewWithConfig(util.CacheConfig[CacheKey, models.Fact]{
		Capacity: capacity,
		TTL:      ttl,
		Now:      now,
	})
	return &FactCache{lru: lru}
}

// Get returns a copy of the cached fact for key.
func (c *FactCache) Get(key CacheKey) (models.Fact, bool) {
	f, ok := c.lru.Get(key)
	if !ok {
		return models.Fact{}, false
	}
	return f.Clone(), true
}

// Put stores a copy of fact under key.
func (c *FactCache) Put(key CacheKey, fact models.Fact) {
	c.lru.Put(key, fact.Clone(), 1)
}

// Len returns the number of stored entries, including expired ones not yet read.
func (c *FactCache) Len() int {
	return c.lru.Len()
}
