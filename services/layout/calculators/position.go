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
	"hash/fnv"
	"math/rand/v2"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var (
	horizontal    = []units.Dimension{units.DimensionX, units.DimensionXY}
	vertical      = []units.Dimension{units.DimensionY}
	allPositional = []units.Dimension{units.DimensionX, units.DimensionY, units.DimensionXY}
)

// PositionStrategies returns the builtin POSITION strategies.
//
// Edges and centers are measured in the parent's coordinate space: LEFT is
// the parent origin, RIGHT is origin plus width. XY resolves along X.
func PositionStrategies() []*strategy.Strategy {
	parent := strategy.RequireSections(units.SectionParent)

	return []*strategy.Strategy{
		{
			ID:         "position.left",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolLeft},
			Dimensions: horizontal,
			Requires:   parent,
			Compute:    parentEdge(0),
		},
		{
			ID:         "position.top",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolTop},
			Dimensions: vertical,
			Requires:   parent,
			Compute:    parentEdge(0),
		},
		{
			ID:         "position.right",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolRight},
			Dimensions: horizontal,
			Requires:   parent,
			Compute:    parentEdge(1),
		},
		{
			ID:         "position.bottom",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolBottom},
			Dimensions: vertical,
			Requires:   parent,
			Compute:    parentEdge(1),
		},
		{
			ID:         "position.center",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolCenter},
			Dimensions: allPositional,
			Requires:   parent,
			Compute:    parentEdge(0.5),
		},
		{
			ID:         "position.scene_center",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolSceneCenter},
			Dimensions: allPositional,
			Requires:   strategy.RequireSections(units.SectionScene),
			Compute: func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
				return c.Scene.Axis(d) / 2, nil
			},
		},
		{
			ID:         "position.random",
			Priority:   BuiltinPriority,
			Values:     []units.Symbol{units.SymbolRandom},
			Dimensions: allPositional,
			Requires:   parent,
			Compute: func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
				return c.Parent.Origin(d) + seededFloat(c, d)*c.Parent.Axis(d), nil
			},
		},
	}
}

// parentEdge returns origin + fraction*extent along the requested axis.
func parentEdge(fraction float64) strategy.ComputeFunc {
	return func(_ units.Value, _ units.Unit, d units.Dimension, c units.Context) (float64, error) {
		return c.Parent.Origin(d) + fraction*c.Parent.Axis(d), nil
	}
}

// seededFloat returns a value in [0, 1) determined by the context
// fingerprint and the dimension.
func seededFloat(c units.Context, d units.Dimension) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(d))
	rng := rand.New(rand.NewPCG(units.Fingerprint(c).Seed(), h.Sum64()))
	return rng.Float64()
}
