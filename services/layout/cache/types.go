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
	"container/list"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// Default configuration values.
const (
	// DefaultMaxSize is the default maximum number of cached results.
	DefaultMaxSize = 1000

	// DefaultTTL is the default lifetime of a cached result.
	DefaultTTL = 5 * time.Minute
)

// ErrInvalidMaxSize is returned by SetMaxSize for capacities below one.
var ErrInvalidMaxSize = errors.New("cache max size must be at least 1")

// Key identifies a cached result.
//
// Key is a comparable struct used directly as a map key. The context part is
// the structural fingerprint of every context field a strategy can read, so
// two contexts that agree on those fields share a key and contexts that
// differ can never collide.
type Key struct {
	Value     units.Value              `json:"value"`
	Unit      units.Unit               `json:"unit"`
	Dimension units.Dimension          `json:"dimension"`
	Context   units.ContextFingerprint `json:"context"`
}

// NewKey derives the cache key for a request.
func NewKey(v units.Value, u units.Unit, d units.Dimension, c units.Context) Key {
	return Key{Value: v, Unit: u, Dimension: d, Context: units.Fingerprint(c)}
}

// flightKey renders the key for singleflight, which needs strings. Floats
// are written as bit patterns with negative zero folded into zero, so two
// keys share a flight exactly when they are equal map keys.
func (k Key) flightKey() string {
	b := make([]byte, 0, 256)
	b = append(b, k.Value.Symbol...)
	b = append(b, '|')
	if k.Value.IsNumber() {
		b = append(b, '#')
		b = appendFloat(b, k.Value.Number)
	}
	b = append(b, '|')
	b = append(b, k.Unit...)
	b = append(b, '|')
	b = append(b, k.Dimension...)
	for _, f := range k.Context.Floats() {
		b = append(b, '|')
		b = appendFloat(b, f)
	}
	return string(b)
}

func appendFloat(b []byte, f float64) []byte {
	if f == 0 {
		f = 0
	}
	return strconv.AppendUint(b, math.Float64bits(f), 16)
}

// entry is a cached result.
//
// Lifecycle: created on Set, touched on every hit, destroyed on eviction,
// Delete, Cleanup or Clear.
type entry struct {
	key          Key
	value        float64
	createdAt    time.Time
	ttl          time.Duration
	accessCount  int64
	lastAccessAt time.Time

	// lruElement is the position in the recency list.
	lruElement *list.Element
}

// expired reports whether the entry outlived its ttl. A zero ttl never expires.
func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Statistics contains diagnostics about the cache.
type Statistics struct {
	// Size is the number of entries, expired-but-unswept ones included.
	Size int `json:"size"`

	// MaxSize is the configured capacity.
	MaxSize int `json:"max_size"`

	// HitCount is the number of lookups that returned a value.
	HitCount int64 `json:"hit_count"`

	// MissCount is the number of lookups that did not, expired reads included.
	MissCount int64 `json:"miss_count"`

	// HitRate is hits/(hits+misses), or 0 before the first lookup.
	HitRate float64 `json:"hit_rate"`

	// AverageAccessTime is the mean wall time spent in lookups.
	AverageAccessTime time.Duration `json:"average_access_time"`

	// EvictionCount is the number of capacity evictions.
	EvictionCount int64 `json:"eviction_count"`
}

// EntrySnapshot is the exported form of an entry used for persistence.
type EntrySnapshot struct {
	Key         Key           `json:"key"`
	Value       float64       `json:"value"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	AccessCount int64         `json:"access_count"`
}

// Options configures a Cache.
type Options struct {
	// Name labels metrics and log lines.
	// Default: "default"
	Name string

	// MaxSize is the maximum number of entries.
	// Default: 1000
	MaxSize int

	// TTL is the lifetime applied by Set. Zero disables expiry.
	// Default: 5 minutes
	TTL time.Duration

	// Clock supplies the current time for expiry decisions.
	// Default: time.Now
	Clock func() time.Time

	// Logger for debug output. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Name:    "default",
		MaxSize: DefaultMaxSize,
		TTL:     DefaultTTL,
		Clock:   time.Now,
		Logger:  slog.Default(),
	}
}

// Option is a functional option for configuring a Cache.
type Option func(*Options)

// WithName sets the cache name used in metrics and logs.
func WithName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Name = name
		}
	}
}

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSize = n
		}
	}
}

// WithTTL sets the default entry lifetime. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.TTL = d
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
