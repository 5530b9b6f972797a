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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Composition
// =============================================================================

var (
	// compositionsTotal counts compositions.
	// Labels: kind, outcome (composed, empty)
	compositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "layout",
		Subsystem: "composer",
		Name:      "compositions_total",
		Help:      "Total compositions by composer kind and outcome",
	}, []string{"kind", "outcome"})

	// compositionDuration measures composition latency.
	// Labels: kind
	compositionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "layout",
		Subsystem: "composer",
		Name:      "duration_seconds",
		Help:      "Composition latency in seconds",
		Buckets:   []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	}, []string{"kind"})

	// skippedCandidates counts candidates excluded from a composition.
	// Labels: kind, reason (inadmissible, error)
	skippedCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "layout",
		Subsystem: "composer",
		Name:      "skipped_candidates_total",
		Help:      "Candidates excluded from composition",
	}, []string{"kind", "reason"})
)
