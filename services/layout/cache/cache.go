// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the layout result cache: a bounded LRU map with
// per-entry TTL, hit/miss accounting and expiry sweeps.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// Cache stores resolved layout values.
//
// # Description
//
// Entries are keyed by (value, unit, dimension, context fingerprint). The
// cache never holds more than MaxSize entries: inserting a new key at
// capacity evicts exactly one entry, the least recently used one according
// to an explicit recency list (not insertion order).
//
// Expiry is lazy. An entry older than its ttl reads as a miss whether or not
// Cleanup has removed it yet.
//
// # Thread Safety
//
// Safe for concurrent use. Every public method runs under a single mutex
// for its whole duration; lookups are O(1) so contention stays low.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	lru     *list.List // front = most recently used
	flight  singleflight.Group
	options Options

	// Stats, guarded by mu.
	hits        int64
	misses      int64
	evictions   int64
	lookupCount int64
	lookupTime  time.Duration

	// generation increments on Clear. A computation started before a Clear
	// does not store its result.
	generation uint64
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Cache{
		entries: make(map[Key]*entry),
		lru:     list.New(),
		options: options,
	}
}

// Name returns the configured cache name.
func (c *Cache) Name() string {
	return c.options.Name
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options.TTL
}

// Get returns the cached value for the request.
//
// # Outputs
//
//   - float64: The cached value when found.
//   - bool: True only if an entry exists and has not expired.
//
// Every call counts exactly one hit or one miss.
func (c *Cache) Get(v units.Value, u units.Unit, d units.Dimension, ctx units.Context) (float64, bool) {
	return c.lookup(context.Background(), NewKey(v, u, d, ctx))
}

// lookup is Get on a precomputed key.
func (c *Cache) lookup(ctx context.Context, key Key) (float64, bool) {
	start := time.Now()

	c.mu.Lock()
	value, hit := c.touchLocked(key)
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	elapsed := time.Since(start)
	c.lookupCount++
	c.lookupTime += elapsed
	c.mu.Unlock()

	recordCacheLookup(ctx, c.options.Name, elapsed, hit)
	return value, hit
}

// touchLocked returns a live entry's value and refreshes its recency.
// Must hold mu.
func (c *Cache) touchLocked(key Key) (float64, bool) {
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	now := c.options.Clock()
	if e.expired(now) {
		return 0, false
	}
	e.accessCount++
	e.lastAccessAt = now
	c.lru.MoveToFront(e.lruElement)
	return e.value, true
}

// Set stores a result with the cache's default ttl.
func (c *Cache) Set(v units.Value, u units.Unit, d units.Dimension, ctx units.Context, result float64) {
	c.mu.Lock()
	ttl := c.options.TTL
	c.mu.Unlock()
	c.SetWithTTL(v, u, d, ctx, result, ttl)
}

// SetWithTTL stores a result with an explicit ttl. Zero never expires.
//
// # Description
//
// Overwriting an existing key resets its creation and access times and
// marks it most recently used. Inserting a new key at capacity first evicts
// the single least recently used entry.
func (c *Cache) SetWithTTL(v units.Value, u units.Unit, d units.Dimension, ctx units.Context, result float64, ttl time.Duration) {
	key := NewKey(v, u, d, ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.options.Clock()
	c.putLocked(key, result, now, ttl, 0)
}

// putLocked inserts or overwrites an entry. Must hold mu.
func (c *Cache) putLocked(key Key, value float64, createdAt time.Time, ttl time.Duration, accessCount int64) {
	if e, exists := c.entries[key]; exists {
		e.value = value
		e.createdAt = createdAt
		e.lastAccessAt = createdAt
		e.ttl = ttl
		e.accessCount = accessCount
		c.lru.MoveToFront(e.lruElement)
		return
	}

	if len(c.entries) >= c.options.MaxSize {
		c.evictLRULocked()
	}

	e := &entry{
		key:          key,
		value:        value,
		createdAt:    createdAt,
		lastAccessAt: createdAt,
		ttl:          ttl,
		accessCount:  accessCount,
	}
	e.lruElement = c.lru.PushFront(key)
	c.entries[key] = e
}

// evictLRULocked evicts the least recently used entry (must hold lock).
func (c *Cache) evictLRULocked() bool {
	elem := c.lru.Back()
	if elem == nil {
		return false
	}

	key := elem.Value.(Key)
	c.lru.Remove(elem)
	delete(c.entries, key)
	c.evictions++
	recordCacheEviction(context.Background(), c.options.Name)
	return true
}

// Has reports whether a live entry exists. It touches neither counters nor
// recency.
func (c *Cache) Has(v units.Value, u units.Unit, d units.Dimension, ctx units.Context) bool {
	key := NewKey(v, u, d, ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && !e.expired(c.options.Clock())
}

// Delete removes an entry.
//
// # Outputs
//
//   - bool: True if an entry (live or expired) was removed.
func (c *Cache) Delete(v units.Value, u units.Unit, d units.Dimension, ctx units.Context) bool {
	key := NewKey(v, u, d, ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(e.lruElement)
	delete(c.entries, key)
	return true
}

// Clear removes all entries and resets hit, miss and eviction counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.lru.Init()
	c.generation++
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.lookupCount = 0
	c.lookupTime = 0
}

// Cleanup removes every expired entry regardless of recency.
//
// # Outputs
//
//   - int: Number of entries removed.
//
// Live entries keep their position in the recency list.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	now := c.options.Clock()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.lru.Remove(e.lruElement)
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	recordCacheExpired(context.Background(), c.options.Name, removed)
	return removed
}

// SetMaxSize changes the capacity, evicting least recently used entries
// until occupancy fits.
func (c *Cache) SetMaxSize(n int) error {
	if n < 1 {
		return ErrInvalidMaxSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.options.MaxSize = n
	for len(c.entries) > n {
		if !c.evictLRULocked() {
			break
		}
	}
	return nil
}

// Len returns the number of entries, expired-but-unswept ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStatistics returns a snapshot of cache diagnostics. It has no side
// effects and may be polled at any frequency.
func (c *Cache) GetStatistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Statistics{
		Size:          len(c.entries),
		MaxSize:       c.options.MaxSize,
		HitCount:      c.hits,
		MissCount:     c.misses,
		EvictionCount: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if c.lookupCount > 0 {
		stats.AverageAccessTime = c.lookupTime / time.Duration(c.lookupCount)
	}
	return stats
}

// ComputeFunc produces a value on a cache miss.
type ComputeFunc func(ctx context.Context) (float64, error)

// GetOrCompute returns the cached value or computes, stores and returns it.
//
// # Description
//
// Counts exactly one hit or miss. Concurrent misses on the same key share a
// single computation through singleflight. Errors are returned to every
// waiter and are not cached. A result whose computation overlapped a Clear
// is returned but not stored.
//
// # Outputs
//
//   - float64: The cached or computed value.
//   - bool: True when served from the cache.
//   - error: Non-nil if compute failed.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	v units.Value,
	u units.Unit,
	d units.Dimension,
	uctx units.Context,
	compute ComputeFunc,
) (float64, bool, error) {
	key := NewKey(v, u, d, uctx)

	// Fast path
	if value, ok := c.lookup(ctx, key); ok {
		return value, true, nil
	}

	result, err, _ := c.flight.Do(key.flightKey(), func() (interface{}, error) {
		// Double-check without counting: another caller may have filled it.
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && !e.expired(c.options.Clock()) {
			value := e.value
			c.mu.Unlock()
			return value, nil
		}
		ttl := c.options.TTL
		gen := c.generation
		c.mu.Unlock()

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.putLocked(key, value, c.options.Clock(), ttl, 0)
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return 0, false, err
	}
	return result.(float64), false, nil
}
