// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry indexes layout strategies and selects candidates for a
// request.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	registeredStrategies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "layout",
		Subsystem: "registry",
		Name:      "strategies",
		Help:      "Number of registered strategies per registry",
	}, []string{"registry"})

	duplicateRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "layout",
		Subsystem: "registry",
		Name:      "duplicate_registrations_total",
		Help:      "Registrations ignored because the id was already present",
	}, []string{"registry"})
)

// =============================================================================
// Registry
// =============================================================================

// entry pairs a strategy with its registration sequence number, which breaks
// priority ties (first registered wins).
type entry struct {
	strategy *strategy.Strategy
	seq      uint64
}

// Registry indexes strategies by symbolic value and keeps them in
// registration order.
//
// Strategies whose Values list is empty or that carry a custom Match are
// "wildcards": they are considered for every request.
type Registry struct {
	name   string
	logger *slog.Logger

	mu        sync.RWMutex
	byID      map[string]*entry
	bySymbol  map[units.Symbol][]*entry
	wildcards []*entry
	nextSeq   uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty registry. The name labels metrics and log lines,
// typically the measurement family.
func New(name string, opts ...Option) *Registry {
	r := &Registry{
		name:     name,
		logger:   slog.Default(),
		byID:     make(map[string]*entry),
		bySymbol: make(map[units.Symbol][]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	registeredStrategies.WithLabelValues(name).Set(0)
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.name
}

// Register adds a strategy.
//
// Description:
//
//	Registration is idempotent by id: when the id is already present the call
//	is ignored and the first registration stays in place. Only a structurally
//	invalid strategy (no id or no Compute) is rejected.
//
// Outputs:
//
//	error - strategy.ErrInvalidStrategy for invalid input, nil otherwise.
func (r *Registry) Register(s *strategy.Strategy) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ID]; exists {
		duplicateRegistrations.WithLabelValues(r.name).Inc()
		r.logger.Debug("strategy already registered, ignoring",
			"registry", r.name, "strategy_id", s.ID)
		return nil
	}

	e := &entry{strategy: s, seq: r.nextSeq}
	r.nextSeq++
	r.byID[s.ID] = e

	if s.Match != nil || len(s.Values) == 0 {
		r.wildcards = append(r.wildcards, e)
	} else {
		for _, sym := range s.Values {
			r.bySymbol[sym] = append(r.bySymbol[sym], e)
		}
	}

	registeredStrategies.WithLabelValues(r.name).Set(float64(len(r.byID)))
	return nil
}

// Unregister removes the strategy with the given id.
//
// Outputs:
//
//	bool - True iff the id was present and has been removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)

	r.wildcards = removeEntry(r.wildcards, e)
	for _, sym := range e.strategy.Values {
		remaining := removeEntry(r.bySymbol[sym], e)
		if len(remaining) == 0 {
			delete(r.bySymbol, sym)
		} else {
			r.bySymbol[sym] = remaining
		}
	}

	registeredStrategies.WithLabelValues(r.name).Set(float64(len(r.byID)))
	return true
}

// Get returns the strategy registered under id.
func (r *Registry) Get(id string) (*strategy.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.strategy, true
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// List returns every strategy in registration order.
func (r *Registry) List() []*strategy.Strategy {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*strategy.Strategy, len(entries))
	for i, e := range entries {
		out[i] = e.strategy
	}
	return out
}

// GetStrategiesFor returns every strategy whose CanHandle accepts the triple.
//
// The result is in registration order; callers that need precedence order
// use GetBestStrategy or sort by priority themselves. An empty result is not
// an error.
func (r *Registry) GetStrategiesFor(v units.Value, u units.Unit, d units.Dimension) []*strategy.Strategy {
	matched := r.candidates(v, u, d)
	out := make([]*strategy.Strategy, len(matched))
	for i, e := range matched {
		out[i] = e.strategy
	}
	return out
}

// GetBestStrategy returns the matching strategy with the lowest priority
// number. Ties go to the earliest registration.
func (r *Registry) GetBestStrategy(v units.Value, u units.Unit, d units.Dimension) (*strategy.Strategy, bool) {
	matched := r.candidates(v, u, d)
	if len(matched) == 0 {
		return nil, false
	}
	best := matched[0]
	for _, e := range matched[1:] {
		if e.strategy.Priority < best.strategy.Priority {
			best = e
		}
	}
	return best.strategy, true
}

// candidates collects matching entries sorted by registration sequence.
func (r *Registry) candidates(v units.Value, u units.Unit, d units.Dimension) []*entry {
	r.mu.RLock()
	pool := make([]*entry, 0, len(r.wildcards)+4)
	pool = append(pool, r.wildcards...)
	if !v.IsNumber() {
		pool = append(pool, r.bySymbol[v.Symbol]...)
	}
	r.mu.RUnlock()

	matched := pool[:0]
	seen := make(map[uint64]struct{}, len(pool))
	for _, e := range pool {
		if _, dup := seen[e.seq]; dup {
			continue
		}
		seen[e.seq] = struct{}{}
		if e.strategy.CanHandle(v, u, d) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	return matched
}

// =============================================================================
// Statistics
// =============================================================================

// Statistics summarizes registry contents for diagnostics. It plays no part
// in calculation.
type Statistics struct {
	Total       int                     `json:"total"`
	ByValue     map[units.Symbol]int    `json:"by_value"`
	ByUnit      map[units.Unit]int      `json:"by_unit"`
	ByDimension map[units.Dimension]int `json:"by_dimension"`

	// Wildcards counts strategies indexed under no specific value.
	Wildcards int `json:"wildcards"`
}

// GetStatistics counts registered strategies by declared value, unit and
// dimension. A strategy declaring several entries on an axis is counted once
// under each.
func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		Total:       len(r.byID),
		ByValue:     make(map[units.Symbol]int),
		ByUnit:      make(map[units.Unit]int),
		ByDimension: make(map[units.Dimension]int),
		Wildcards:   len(r.wildcards),
	}
	for _, e := range r.byID {
		for _, v := range e.strategy.Values {
			stats.ByValue[v]++
		}
		for _, u := range e.strategy.Units {
			stats.ByUnit[u]++
		}
		for _, d := range e.strategy.Dimensions {
			stats.ByDimension[d]++
		}
	}
	return stats
}

func removeEntry(list []*entry, target *entry) []*entry {
	out := list[:0]
	for _, e := range list {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
