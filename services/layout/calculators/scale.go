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
	"math"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var scaleDimensions = []units.Dimension{units.DimensionX, units.DimensionY, units.DimensionBoth, units.DimensionXY}

// ScaleStrategies returns the builtin SCALE strategies.
//
// Ratios compare the parent to the content. A content box with a zero side
// scales by 1.
func ScaleStrategies() []*strategy.Strategy {
	parentContent := strategy.RequireSections(units.SectionParent, units.SectionContent)

	return []*strategy.Strategy{
		{
			ID:         "scale.fit",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFit},
			Dimensions: scaleDimensions,
			Requires:   parentContent,
			Compute: func(_ units.Value, _ units.Unit, _ units.Dimension, c units.Context) (float64, error) {
				return uniform(c.Parent.Size, *c.Content, math.Min), nil
			},
		},
		{
			ID:         "scale.fill",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolFill},
			Dimensions: scaleDimensions,
			Requires:   parentContent,
			Compute: func(_ units.Value, _ units.Unit, _ units.Dimension, c units.Context) (float64, error) {
				return uniform(c.Parent.Size, *c.Content, math.Max), nil
			},
		},
		{
			ID:         "scale.stretch",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolStretch},
			Dimensions: scaleDimensions,
			Requires:   parentContent,
			Compute: func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
				rx, ry, ok := ratios(c.Parent.Size, *c.Content)
				if !ok {
					return units.FallbackScale, nil
				}
				if d.Vertical() {
					return ry, nil
				}
				return rx, nil
			},
		},
		{
			ID:         "scale.viewport_fit",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolViewportFit},
			Dimensions: scaleDimensions,
			Requires:   strategy.RequireSections(units.SectionViewport, units.SectionScene),
			Compute: func(_ units.Value, _ units.Unit, _ units.Dimension, c units.Context) (float64, error) {
				return uniform(*c.Viewport, *c.Scene, math.Min), nil
			},
		},
	}
}

// uniform picks one of the two axis ratios outer/inner.
func uniform(outer, inner units.Size, pick func(a, b float64) float64) float64 {
	rx, ry, ok := ratios(outer, inner)
	if !ok {
		return units.FallbackScale
	}
	return pick(rx, ry)
}
