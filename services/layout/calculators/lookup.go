// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package calculators

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// ErrInvalidLookup is returned for a lookup declaration that cannot be built.
var ErrInvalidLookup = errors.New("invalid lookup strategy")

// LookupSpec declares a strategy that reads one context field and applies
// result = field*Factor + Offset.
type LookupSpec struct {
	ID       string
	Family   units.Family
	Priority int
	Value    units.Symbol

	// Unit restricts the unit. Empty matches every unit.
	Unit units.Unit

	// Dimensions restricts the dimension. Empty matches every dimension.
	Dimensions []units.Dimension

	// Source is a field address such as "scene.width".
	Source string

	Factor float64
	Offset float64
}

// NewLookup builds a strategy from a declaration.
func NewLookup(spec LookupSpec) (*strategy.Strategy, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidLookup)
	}
	if spec.Value == "" {
		return nil, fmt.Errorf("%w: %s has no value", ErrInvalidLookup, spec.ID)
	}
	if !slices.Contains(units.LookupFields, spec.Source) {
		return nil, fmt.Errorf("%w: %s reads unknown field %q", ErrInvalidLookup, spec.ID, spec.Source)
	}
	if math.IsNaN(spec.Factor) || math.IsInf(spec.Factor, 0) || math.IsNaN(spec.Offset) || math.IsInf(spec.Offset, 0) {
		return nil, fmt.Errorf("%w: %s has a non-finite factor or offset", ErrInvalidLookup, spec.ID)
	}

	var unitSet []units.Unit
	if spec.Unit != "" {
		unitSet = []units.Unit{spec.Unit}
	}
	section := units.Section(spec.Source[:strings.IndexByte(spec.Source, '.')])
	source, factor, offset := spec.Source, spec.Factor, spec.Offset

	return &strategy.Strategy{
		ID:         spec.ID,
		Priority:   spec.Priority,
		Values:     []units.Symbol{spec.Value},
		Units:      unitSet,
		Dimensions: slices.Clone(spec.Dimensions),
		Requires:   strategy.RequireSections(section),
		Compute: func(_ units.Value, _ units.Unit, _ units.Dimension, c units.Context) (float64, error) {
			v, ok := c.Lookup(source)
			if !ok {
				return 0, fmt.Errorf("%w: %s", errMissingAxis, source)
			}
			return v*factor + offset, nil
		},
	}, nil
}
