// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	v, err := ParseValue("42.5")
	require.NoError(t, err)
	assert.True(t, v.IsNumber())
	assert.Equal(t, 42.5, v.Number)

	v, err = ParseValue("fill")
	require.NoError(t, err)
	assert.False(t, v.IsNumber())
	assert.Equal(t, SymbolFill, v.Symbol)

	_, err = ParseValue("nonsense")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestParseEnums(t *testing.T) {
	u, err := ParseUnit("parent_width")
	require.NoError(t, err)
	assert.Equal(t, UnitParentWidth, u)

	d, err := ParseDimension(" y ")
	require.NoError(t, err)
	assert.Equal(t, DimensionY, d)
	assert.True(t, d.Vertical())

	f, err := ParseFamily("SCALE")
	require.NoError(t, err)
	assert.Equal(t, FamilyScale, f)

	_, err = ParseUnit("furlong")
	assert.ErrorIs(t, err, ErrUnknownUnit)
	_, err = ParseDimension("z")
	assert.ErrorIs(t, err, ErrUnknownDimension)
	_, err = ParseFamily("color")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestFamilyFallback(t *testing.T) {
	assert.Equal(t, 100.0, FamilySize.Fallback())
	assert.Equal(t, 0.0, FamilyPosition.Fallback())
	assert.Equal(t, 1.0, FamilyScale.Fallback())
}

func TestFingerprint_StructuralEquality(t *testing.T) {
	a := Context{
		Parent: &Rect{Size: Size{Width: 800, Height: 600}, X: 0, Y: 0},
		Scene:  &Size{Width: 1920, Height: 1080},
	}
	// Different pointers and a negative zero origin.
	b := Context{
		Parent: &Rect{Size: Size{Width: 800, Height: 600}, X: math.Copysign(0, -1), Y: 0},
		Scene:  &Size{Width: 1920, Height: 1080},
	}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	m := map[ContextFingerprint]int{Fingerprint(a): 1}
	assert.Equal(t, 1, m[Fingerprint(b)])
}

func TestFingerprint_CoversReadableFields(t *testing.T) {
	base := Context{Parent: &Rect{Size: Size{Width: 800, Height: 600}}}

	moved := Context{Parent: &Rect{Size: Size{Width: 800, Height: 600}, X: 500}}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(moved), "parent origin")

	lowered := Context{Parent: &Rect{Size: Size{Width: 800, Height: 600}, Y: 30}}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(lowered), "parent origin y")

	withBP := Context{
		Parent:     base.Parent,
		Breakpoint: &Breakpoint{Name: "desktop", Size: Size{Width: 1280, Height: 720}},
	}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(withBP), "breakpoint presence")

	wider := Context{
		Parent:     base.Parent,
		Breakpoint: &Breakpoint{Name: "desktop", Size: Size{Width: 1440, Height: 720}},
	}
	assert.NotEqual(t, Fingerprint(withBP), Fingerprint(wider), "breakpoint size")

	renamed := Context{
		Parent:     base.Parent,
		Breakpoint: &Breakpoint{Name: "wide", Size: Size{Width: 1280, Height: 720}},
	}
	assert.Equal(t, Fingerprint(withBP), Fingerprint(renamed), "breakpoint name is not read")
}

func TestFingerprint_MissingDiffersFromZero(t *testing.T) {
	missing := Context{}
	zero := Context{Scene: &Size{}}
	assert.NotEqual(t, Fingerprint(missing), Fingerprint(zero))
}

func TestContextValidate(t *testing.T) {
	ok := Context{Parent: &Rect{Size: Size{Width: 10, Height: 10}, X: -5}}
	assert.NoError(t, ok.Validate())

	nan := Context{Scene: &Size{Width: math.NaN(), Height: 1}}
	assert.ErrorIs(t, nan.Validate(), ErrMalformedContext)

	neg := Context{Content: &Size{Width: 1, Height: -1}}
	err := neg.Validate()
	require.ErrorIs(t, err, ErrMalformedContext)
	assert.Contains(t, err.Error(), "content.height")

	inf := Context{Parent: &Rect{X: math.Inf(1)}}
	assert.ErrorIs(t, inf.Validate(), ErrMalformedContext)
}

func TestSeed_Deterministic(t *testing.T) {
	c := Context{Parent: &Rect{Size: Size{Width: 300, Height: 200}}}
	assert.Equal(t, Fingerprint(c).Seed(), Fingerprint(c).Seed())
	other := Context{Parent: &Rect{Size: Size{Width: 301, Height: 200}}}
	assert.NotEqual(t, Fingerprint(c).Seed(), Fingerprint(other).Seed())
}

func TestContextLookup(t *testing.T) {
	c := Context{
		Parent:     &Rect{Size: Size{Width: 800, Height: 600}, X: 5, Y: 7},
		Scene:      &Size{Width: 1920, Height: 1080},
		Breakpoint: &Breakpoint{Name: "tablet", Size: Size{Width: 768, Height: 1024}},
	}

	v, ok := c.Lookup("scene.width")
	require.True(t, ok)
	assert.Equal(t, 1920.0, v)

	v, ok = c.Lookup("parent.y")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = c.Lookup("breakpoint.height")
	require.True(t, ok)
	assert.Equal(t, 1024.0, v)

	_, ok = c.Lookup("viewport.width")
	assert.False(t, ok)
	_, ok = c.Lookup("scene.depth")
	assert.False(t, ok)

	assert.True(t, c.Has(SectionParent))
	assert.False(t, c.Has(SectionContent))
}
