// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy defines the Strategy record: a small table of closures
// that turns a symbolic layout value into a number.
//
// # Description
//
// A Strategy is plain data. It declares the symbols, units and dimensions it
// is indexed under, a precedence (lower Priority wins), an optional match
// predicate, an optional context gate and the calculation itself. There is no
// class hierarchy and no dynamic type inspection; dispatch is a lookup in the
// registry followed by a closure call.
//
// # Purity
//
// Compute must be a pure function of its arguments. Results are cached by
// the resolver, so hidden state would make cached and fresh results diverge.
//
// # Thread Safety
//
// A registered Strategy is immutable and safe for concurrent use.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var (
	// ErrInvalidStrategy is returned when a strategy is missing its id or Compute.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrStrategyPanic wraps a panic raised inside Compute.
	ErrStrategyPanic = errors.New("strategy panicked")

	// ErrNonFiniteResult is returned when Compute yields NaN or an infinity.
	ErrNonFiniteResult = errors.New("strategy produced a non-finite result")
)

// ComputeFunc calculates a concrete value.
type ComputeFunc func(v units.Value, u units.Unit, d units.Dimension, c units.Context) (float64, error)

// MatchFunc decides whether a strategy applies to a request triple.
type MatchFunc func(v units.Value, u units.Unit, d units.Dimension) bool

// GateFunc decides whether a context carries what a strategy needs.
type GateFunc func(c units.Context) bool

// Strategy is a registered calculation.
type Strategy struct {
	// ID uniquely identifies the strategy inside a registry.
	ID string

	// Priority orders competing strategies. Lower numbers win.
	Priority int

	// Values, Units and Dimensions declare what the strategy is indexed
	// under. When Match is nil they also act as the match predicate; an
	// empty list matches anything on that axis.
	Values     []units.Symbol
	Units      []units.Unit
	Dimensions []units.Dimension

	// Match overrides the declared-set predicate when non-nil.
	Match MatchFunc

	// Requires gates calculation on context contents. Nil accepts every context.
	Requires GateFunc

	// Compute performs the calculation.
	Compute ComputeFunc
}

// Validate checks that the strategy can be registered.
func (s *Strategy) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil strategy", ErrInvalidStrategy)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidStrategy)
	}
	if s.Compute == nil {
		return fmt.Errorf("%w: %s has no compute function", ErrInvalidStrategy, s.ID)
	}
	return nil
}

// CanHandle reports whether the strategy applies to the triple.
func (s *Strategy) CanHandle(v units.Value, u units.Unit, d units.Dimension) bool {
	if s.Match != nil {
		return s.Match(v, u, d)
	}
	if v.IsNumber() {
		return false
	}
	return matches(s.Values, v.Symbol) && matches(s.Units, u) && matches(s.Dimensions, d)
}

// ValidateContext reports whether the context satisfies the strategy's gate.
func (s *Strategy) ValidateContext(c units.Context) bool {
	if s.Requires == nil {
		return true
	}
	return s.Requires(c)
}

// Calculate runs Compute, converting panics and non-finite results into
// errors so a misbehaving strategy cannot take the caller down.
func (s *Strategy) Calculate(v units.Value, u units.Unit, d units.Dimension, c units.Context) (result float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = 0
			err = fmt.Errorf("%w: %s: %v", ErrStrategyPanic, s.ID, r)
		}
	}()

	result, err = s.Compute(v, u, d, c)
	if err != nil {
		return 0, fmt.Errorf("strategy %s: %w", s.ID, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: %s returned %v", ErrNonFiniteResult, s.ID, result)
	}
	return result, nil
}

func matches[T comparable](declared []T, v T) bool {
	return len(declared) == 0 || slices.Contains(declared, v)
}

// =============================================================================
// Gates
// =============================================================================

// RequireSections returns a gate accepting contexts where every named
// section is present.
func RequireSections(sections ...units.Section) GateFunc {
	return func(c units.Context) bool {
		for _, s := range sections {
			if !c.Has(s) {
				return false
			}
		}
		return true
	}
}
