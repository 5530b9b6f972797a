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
	"sort"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// WeightedAverage composes by weighted mean of admissible candidates.
//
// Thread Safety: safe for concurrent use.
type WeightedAverage struct {
	base
}

// NewWeightedAverage creates a weighted-average composer.
func NewWeightedAverage(opts ...Option) *WeightedAverage {
	return &WeightedAverage{base: newBase(KindWeightedAverage, opts)}
}

// Compose returns sum(result*weight)/sum(weight) over candidates that can
// handle the request, accept the context and compute without error.
// A zero total weight yields (0, false).
func (w *WeightedAverage) Compose(v units.Value, u units.Unit, d units.Dimension, c units.Context, candidates []Candidate) (float64, bool) {
	start := w.options.Clock()

	results := make([]float64, 0, len(candidates))
	weights := make([]float64, 0, len(candidates))
	for _, cand := range candidates {
		if !admissible(cand, v, u, d, c) {
			skippedCandidates.WithLabelValues(string(w.kind), "inadmissible").Inc()
			continue
		}
		result, err := w.run(cand, v, u, d, c)
		if err != nil {
			continue
		}
		results = append(results, result)
		weights = append(weights, cand.Weight)
	}

	value, ok := weightedAverage(results, weights)
	w.finish(start, ok)
	return value, ok
}

// PriorityBased composes by invoking the admissible candidate with the
// lowest priority number. Equal priorities keep the caller's order. If that
// candidate fails, the next one is tried.
//
// Thread Safety: safe for concurrent use.
type PriorityBased struct {
	base
}

// NewPriorityBased creates a priority-based composer.
func NewPriorityBased(opts ...Option) *PriorityBased {
	return &PriorityBased{base: newBase(KindPriority, opts)}
}

// Compose returns the top admissible candidate's result, or (0, false) if
// none produced one. Weights are ignored.
func (p *PriorityBased) Compose(v units.Value, u units.Unit, d units.Dimension, c units.Context, candidates []Candidate) (float64, bool) {
	start := p.options.Clock()

	ordered := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if admissible(cand, v, u, d, c) {
			ordered = append(ordered, cand)
		} else {
			skippedCandidates.WithLabelValues(string(p.kind), "inadmissible").Inc()
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Strategy.Priority < ordered[j].Strategy.Priority
	})

	for _, cand := range ordered {
		result, err := p.run(cand, v, u, d, c)
		if err != nil {
			continue
		}
		p.finish(start, true)
		return result, true
	}

	p.finish(start, false)
	return 0, false
}
