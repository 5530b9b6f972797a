// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConstraints is returned when Min exceeds Max or a bound is not
// finite.
var ErrInvalidConstraints = errors.New("invalid constraints")

// Constraints bound every value a resolver returns. A nil bound is open.
type Constraints struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
}

// Bounds is a convenience constructor for a closed interval.
func Bounds(lo, hi float64) Constraints {
	return Constraints{Min: &lo, Max: &hi}
}

// Validate checks the bounds are finite and ordered.
func (c Constraints) Validate() error {
	for _, b := range []*float64{c.Min, c.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return fmt.Errorf("%w: bound %v is not finite", ErrInvalidConstraints, *b)
		}
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidConstraints, *c.Min, *c.Max)
	}
	return nil
}

// IsZero reports whether neither bound is set.
func (c Constraints) IsZero() bool {
	return c.Min == nil && c.Max == nil
}

// Clamp limits v to the configured bounds.
func (c Constraints) Clamp(v float64) float64 {
	if c.Min != nil && v < *c.Min {
		v = *c.Min
	}
	if c.Max != nil && v > *c.Max {
		v = *c.Max
	}
	return v
}
