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
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var sizeDimensions = []units.Dimension{units.DimensionWidth, units.DimensionHeight, units.DimensionBoth}

// errMissingAxis is returned when a gated section disappeared between the
// gate and the computation, which only happens for hand-built strategies.
var errMissingAxis = errors.New("context section missing")

// namedSizes maps symbols naming a context field to that field.
var namedSizes = map[units.Symbol]string{
	units.SymbolParentWidth:      "parent.width",
	units.SymbolParentHeight:     "parent.height",
	units.SymbolSceneWidth:       "scene.width",
	units.SymbolSceneHeight:      "scene.height",
	units.SymbolViewportWidth:    "viewport.width",
	units.SymbolViewportHeight:   "viewport.height",
	units.SymbolBreakpointWidth:  "breakpoint.width",
	units.SymbolBreakpointHeight: "breakpoint.height",
}

// SizeStrategies returns the builtin SIZE strategies.
//
// BOTH resolves along the width.
func SizeStrategies() []*strategy.Strategy {
	out := []*strategy.Strategy{
		{
			ID:         "size.fill.parent",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFill},
			Units:      []units.Unit{units.UnitPixel, units.UnitParentWidth, units.UnitParentHeight},
			Dimensions: sizeDimensions,
			Requires:   strategy.RequireSections(units.SectionParent),
			Compute:    fillRelative,
		},
		{
			ID:         "size.fill.scene",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFill},
			Units:      []units.Unit{units.UnitSceneWidth, units.UnitSceneHeight},
			Dimensions: sizeDimensions,
			Requires:   strategy.RequireSections(units.SectionScene),
			Compute:    fillRelative,
		},
		{
			ID:         "size.fill.viewport",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFill},
			Units:      []units.Unit{units.UnitViewportWidth, units.UnitViewportHeight},
			Dimensions: sizeDimensions,
			Requires:   strategy.RequireSections(units.SectionViewport),
			Compute:    fillRelative,
		},
		{
			ID:         "size.content",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolAuto, units.SymbolContent},
			Units:      []units.Unit{units.UnitPixel, units.UnitContent, units.UnitAuto},
			Dimensions: sizeDimensions,
			Requires:   strategy.RequireSections(units.SectionContent),
			Compute: func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
				return c.Content.Axis(d), nil
			},
		},
		{
			ID:         "size.fit",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFit},
			Units:      []units.Unit{units.UnitPixel, units.UnitParentWidth, units.UnitParentHeight},
			Dimensions: sizeDimensions,
			Requires:   strategy.RequireSections(units.SectionParent, units.SectionContent),
			Compute: func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
				rx, ry, ok := ratios(c.Parent.Size, *c.Content)
				if !ok {
					return c.Parent.Axis(d), nil
				}
				return c.Content.Axis(d) * math.Min(rx, ry), nil
			},
		},
	}

	for sym, field := range namedSizes {
		out = append(out, namedSize(sym, field))
	}
	sortByID(out[5:])
	return out
}

// fillRelative fills the section the unit is measured against.
func fillRelative(_ units.Value, u units.Unit, d units.Dimension, c units.Context) (float64, error) {
	v, ok := relativeAxis(u, d, c)
	if !ok {
		return 0, fmt.Errorf("%w for unit %s", errMissingAxis, u)
	}
	return v, nil
}

// namedSize resolves a symbol that names a single context field.
func namedSize(sym units.Symbol, field string) *strategy.Strategy {
	section := units.Section(field[:strings.IndexByte(field, '.')])
	return &strategy.Strategy{
		ID:         "size.named." + strings.ToLower(string(sym)),
		Priority:   BuiltinPriority,
		Values:     []units.Symbol{sym},
		Units:      []units.Unit{units.UnitPixel},
		Dimensions: sizeDimensions,
		Requires:   strategy.RequireSections(section),
		Compute: func(_ units.Value, _ units.Unit, _ units.Dimension, c units.Context) (float64, error) {
			v, ok := c.Lookup(field)
			if !ok {
				return 0, fmt.Errorf("%w: %s", errMissingAxis, field)
			}
			return v, nil
		},
	}
}

func sortByID(list []*strategy.Strategy) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
