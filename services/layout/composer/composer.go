// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package composer combines the outputs of several applicable strategies
// into a single layout value.
//
// Three variants are provided:
//
//   - WeightedAverage: sum(result*weight)/sum(weight) over admissible candidates.
//   - PriorityBased: the lowest priority number among admissible candidates wins.
//   - Adaptive: weighted average whose weights are scaled by a per-strategy
//     history of success rate and execution time.
//
// A strategy that fails during composition is skipped; it never aborts the
// whole composition.
package composer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// ErrUnknownKind is returned for an unrecognized composer kind.
var ErrUnknownKind = errors.New("unknown composer kind")

// Kind names a composer variant.
type Kind string

const (
	KindWeightedAverage Kind = "weighted_average"
	KindPriority        Kind = "priority"
	KindAdaptive        Kind = "adaptive"
)

// AllKinds lists every composer kind.
var AllKinds = []Kind{KindWeightedAverage, KindPriority, KindAdaptive}

// ParseKind parses a composer kind. Hyphens and case are ignored.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Candidate is one strategy offered for composition with its weight.
// Candidates are built per call and never stored.
type Candidate struct {
	Strategy *strategy.Strategy
	Weight   float64
}

// Composer combines candidate strategy outputs.
type Composer interface {
	// Kind returns the composer variant.
	Kind() Kind

	// CanCompose is the composer's admissibility check for a request.
	CanCompose(v units.Value, u units.Unit) bool

	// Compose returns the combined value. ok is false when no candidate
	// contributed a positive weight; the value is then 0 and callers are
	// expected to fall back.
	Compose(v units.Value, u units.Unit, d units.Dimension, c units.Context, candidates []Candidate) (value float64, ok bool)

	// ValidateContext reports whether the context is usable for composition:
	// at least one of parent, scene or viewport must be present.
	ValidateContext(c units.Context) bool

	// GetPerformanceMetrics returns execution statistics over the recent
	// window. It has no side effects.
	GetPerformanceMetrics() PerformanceMetrics
}

// Options configures a composer.
type Options struct {
	// Logger for debug output. Default: slog.Default().
	Logger *slog.Logger

	// Clock is used to time executions.
	// Default: time.Now
	Clock func() time.Time
}

// Option is a functional option for configuring a composer.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClock overrides the time source used for execution timing.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

func buildOptions(opts []Option) Options {
	o := Options{Logger: slog.Default(), Clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a composer of the given kind.
func New(kind Kind, opts ...Option) (Composer, error) {
	switch kind {
	case KindWeightedAverage:
		return NewWeightedAverage(opts...), nil
	case KindPriority:
		return NewPriorityBased(opts...), nil
	case KindAdaptive:
		return NewAdaptive(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// =============================================================================
// Shared behaviour
// =============================================================================

// base carries what every composer variant shares.
type base struct {
	kind    Kind
	options Options
	perf    *tracker
}

func newBase(kind Kind, opts []Option) base {
	return base{kind: kind, options: buildOptions(opts), perf: newTracker()}
}

func (b *base) Kind() Kind { return b.kind }

// CanCompose always admits composition.
func (b *base) CanCompose(units.Value, units.Unit) bool { return true }

func (b *base) ValidateContext(c units.Context) bool {
	return c.Parent != nil || c.Scene != nil || c.Viewport != nil
}

func (b *base) GetPerformanceMetrics() PerformanceMetrics {
	return b.perf.metrics()
}

// admissible reports whether a candidate may take part in composition.
func admissible(cand Candidate, v units.Value, u units.Unit, d units.Dimension, c units.Context) bool {
	return cand.Strategy != nil &&
		cand.Strategy.CanHandle(v, u, d) &&
		cand.Strategy.ValidateContext(c)
}

// run invokes a candidate and logs a skipped failure.
func (b *base) run(cand Candidate, v units.Value, u units.Unit, d units.Dimension, c units.Context) (float64, error) {
	result, err := cand.Strategy.Calculate(v, u, d, c)
	if err != nil {
		skippedCandidates.WithLabelValues(string(b.kind), "error").Inc()
		b.options.Logger.Debug("strategy failed during composition, skipping",
			"composer", b.kind,
			"strategy_id", cand.Strategy.ID,
			"error", err)
	}
	return result, err
}

// finish records one composition in the window and in Prometheus.
func (b *base) finish(start time.Time, ok bool) {
	elapsed := b.options.Clock().Sub(start)
	b.perf.record(elapsed, ok)

	outcome := "composed"
	if !ok {
		outcome = "empty"
	}
	compositionsTotal.WithLabelValues(string(b.kind), outcome).Inc()
	compositionDuration.WithLabelValues(string(b.kind)).Observe(elapsed.Seconds())
}

// weightedAverage averages (result, weight) pairs. Negative weights count as
// zero. ok is false when the total weight is zero.
func weightedAverage(results, weights []float64) (float64, bool) {
	var sum, total float64
	for i, r := range results {
		w := weights[i]
		if w <= 0 {
			continue
		}
		sum += r * w
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}
