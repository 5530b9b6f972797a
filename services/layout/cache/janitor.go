// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"time"
)

// StartJanitor runs Cleanup every interval until ctx is cancelled.
//
// The returned channel is closed once the goroutine has exited. A
// non-positive interval returns an already-closed channel.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Cleanup(); removed > 0 {
					c.options.Logger.Debug("cache janitor swept expired entries",
						"cache", c.options.Name, "removed", removed)
				}
			}
		}
	}()
	return done
}

// Snapshot exports every live entry ordered from least to most recently
// used, so Restore replays them into the same recency order.
func (c *Cache) Snapshot() []EntrySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.options.Clock()
	out := make([]EntrySnapshot, 0, len(c.entries))
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		e := c.entries[elem.Value.(Key)]
		if e == nil || e.expired(now) {
			continue
		}
		out = append(out, EntrySnapshot{
			Key:         e.key,
			Value:       e.value,
			CreatedAt:   e.createdAt,
			TTL:         e.ttl,
			AccessCount: e.accessCount,
		})
	}
	return out
}

// Restore inserts snapshot entries, skipping any that have already expired.
// Capacity rules apply as for Set.
//
// # Outputs
//
//   - int: Number of entries restored.
func (c *Cache) Restore(entries []EntrySnapshot) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.options.Clock()
	restored := 0
	for _, snap := range entries {
		stored := entry{createdAt: snap.CreatedAt, ttl: snap.TTL}
		if stored.expired(now) {
			continue
		}
		c.putLocked(snap.Key, snap.Value, snap.CreatedAt, snap.TTL, snap.AccessCount)
		restored++
	}
	return restored
}
