// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package composer

import (
	"math"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

const (
	// minTimeFactor bounds how far a slow strategy's weight can be reduced.
	minTimeFactor = 0.1

	// slowThresholdMs is the average execution time at which the time
	// factor bottoms out.
	slowThresholdMs = 1000.0
)

// LedgerEntry is the recorded history of one strategy.
type LedgerEntry struct {
	SuccessCount int64 `json:"success_count"`
	TotalCount   int64 `json:"total_count"`

	// AvgTimeMs is the running mean execution time in milliseconds.
	AvgTimeMs float64 `json:"avg_time_ms"`
}

// SuccessRate returns successes/total, or 1 for a strategy with no history.
func (e LedgerEntry) SuccessRate() float64 {
	if e.TotalCount == 0 {
		return 1
	}
	return float64(e.SuccessCount) / float64(e.TotalCount)
}

// Adaptive composes by weighted mean with weights adjusted from history.
//
// # Description
//
// For each candidate the effective weight is
//
//	weight * (0.5 + 0.5*successRate) * max(0.1, 1 - avgTimeMs/1000)
//
// computed from the ledger as it stood before the call. Every invoked
// candidate then updates its ledger entry, successful or not. A strategy
// with no history has success rate 1 and average time 0.
//
// The ledger is keyed by strategy id and owned by this instance.
//
// # Thread Safety
//
// Safe for concurrent use.
type Adaptive struct {
	base

	mu     sync.Mutex
	ledger map[string]*LedgerEntry
}

// NewAdaptive creates an adaptive composer with an empty ledger.
func NewAdaptive(opts ...Option) *Adaptive {
	return &Adaptive{
		base:   newBase(KindAdaptive, opts),
		ledger: make(map[string]*LedgerEntry),
	}
}

// AdaptiveWeight applies the history adjustment to a base weight.
func AdaptiveWeight(baseWeight float64, e LedgerEntry) float64 {
	timeFactor := math.Max(minTimeFactor, 1-e.AvgTimeMs/slowThresholdMs)
	return baseWeight * (0.5 + 0.5*e.SuccessRate()) * timeFactor
}

// Compose runs every admissible candidate and averages with adaptive weights.
func (a *Adaptive) Compose(v units.Value, u units.Unit, d units.Dimension, c units.Context, candidates []Candidate) (float64, bool) {
	start := a.options.Clock()

	results := make([]float64, 0, len(candidates))
	weights := make([]float64, 0, len(candidates))
	for _, cand := range candidates {
		if !admissible(cand, v, u, d, c) {
			skippedCandidates.WithLabelValues(string(a.kind), "inadmissible").Inc()
			continue
		}

		weight := AdaptiveWeight(cand.Weight, a.Entry(cand.Strategy.ID))

		began := a.options.Clock()
		result, err := a.run(cand, v, u, d, c)
		a.observe(cand.Strategy.ID, a.options.Clock().Sub(began), err == nil)
		if err != nil {
			continue
		}
		results = append(results, result)
		weights = append(weights, weight)
	}

	value, ok := weightedAverage(results, weights)
	a.finish(start, ok)
	return value, ok
}

// Entry returns a copy of the ledger entry for a strategy id. Unknown ids
// return the zero entry.
func (a *Adaptive) Entry(id string) LedgerEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.ledger[id]; ok {
		return *e
	}
	return LedgerEntry{}
}

// Ledger returns a copy of the whole ledger.
func (a *Adaptive) Ledger() map[string]LedgerEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]LedgerEntry, len(a.ledger))
	for id, e := range a.ledger {
		out[id] = *e
	}
	return out
}

// Reset clears the ledger.
func (a *Adaptive) Reset() {
	a.mu.Lock()
	a.ledger = make(map[string]*LedgerEntry)
	a.mu.Unlock()
}

func (a *Adaptive) observe(id string, elapsed time.Duration, success bool) {
	ms := float64(elapsed) / float64(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.ledger[id]
	if !ok {
		e = &LedgerEntry{}
		a.ledger[id] = e
	}
	e.TotalCount++
	if success {
		e.SuccessCount++
	}
	e.AvgTimeMs += (ms - e.AvgTimeMs) / float64(e.TotalCount)
}
