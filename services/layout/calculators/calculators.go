// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calculators provides the builtin size, position and scale
// strategies and the config-declared field lookup strategy.
//
// Every strategy here is a pure function of its arguments. RANDOM is
// seeded from the context fingerprint so the same context always yields
// the same offset.
package calculators

import (
	"fmt"

	"github.com/AleutianAI/AleutianLayout/services/layout/registry"
	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// BuiltinPriority is the priority of every builtin strategy. Declared
// strategies with a lower number take precedence.
const BuiltinPriority = 10

// Builtins returns the builtin strategies of a family.
func Builtins(f units.Family) []*strategy.Strategy {
	switch f {
	case units.FamilySize:
		return SizeStrategies()
	case units.FamilyPosition:
		return PositionStrategies()
	case units.FamilyScale:
		return ScaleStrategies()
	}
	return nil
}

// RegisterBuiltins registers the builtin strategies of a family.
func RegisterBuiltins(reg *registry.Registry, f units.Family) error {
	for _, s := range Builtins(f) {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("register builtin %s: %w", s.ID, err)
		}
	}
	return nil
}

// relativeAxis picks the context section and axis a unit is measured
// against. Units that name no section measure against the parent along the
// requested dimension.
func relativeAxis(u units.Unit, d units.Dimension, c units.Context) (float64, bool) {
	switch u {
	case units.UnitParentWidth:
		return c.Lookup("parent.width")
	case units.UnitParentHeight:
		return c.Lookup("parent.height")
	case units.UnitSceneWidth:
		return c.Lookup("scene.width")
	case units.UnitSceneHeight:
		return c.Lookup("scene.height")
	case units.UnitViewportWidth:
		return c.Lookup("viewport.width")
	case units.UnitViewportHeight:
		return c.Lookup("viewport.height")
	}
	if c.Parent == nil {
		return 0, false
	}
	return c.Parent.Axis(d), true
}

// ratios returns the per-axis ratios outer/inner, or false if inner has a
// zero side.
func ratios(outer, inner units.Size) (x, y float64, ok bool) {
	if inner.Width == 0 || inner.Height == 0 {
		return 0, 0, false
	}
	return outer.Width / inner.Width, outer.Height / inner.Height, true
}
