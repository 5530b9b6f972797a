// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

func TestParseRect(t *testing.T) {
	r, err := parseRect("800x600+10+20")
	require.NoError(t, err)
	assert.Equal(t, units.Rect{Size: units.Size{Width: 800, Height: 600}, X: 10, Y: 20}, *r)

	r, err = parseRect("320X240")
	require.NoError(t, err)
	assert.Equal(t, 240.0, r.Height)

	r, err = parseRect("")
	require.NoError(t, err)
	assert.Nil(t, r)

	for _, bad := range []string{"800", "800x", "axb", "800x600+1", "+1+2", "800x600+a+2"} {
		_, err := parseRect(bad)
		assert.ErrorIs(t, err, errBadGeometry, bad)
	}
}

func TestParseBreakpoint(t *testing.T) {
	bp, err := parseBreakpoint("md:1024x768")
	require.NoError(t, err)
	assert.Equal(t, "md", bp.Name)
	assert.Equal(t, 1024.0, bp.Width)

	_, err = parseBreakpoint("1024x768")
	assert.ErrorIs(t, err, errBadGeometry)
	_, err = parseBreakpoint("md:")
	assert.ErrorIs(t, err, errBadGeometry)
}

func TestRequestParse(t *testing.T) {
	req := request{
		family: "position", value: "center", unit: "pixel", dimension: "x",
		parent: "800x600", scene: "1920x1080", viewport: "1280x720", content: "10x10", breakpoint: "lg:1920x1080",
	}
	p, err := req.parse()
	require.NoError(t, err)
	assert.Equal(t, units.FamilyPosition, p.family)
	assert.Equal(t, units.Sym(units.SymbolCenter), p.value)
	assert.Equal(t, units.DimensionX, p.dimension)
	require.NotNil(t, p.context.Viewport)
	require.NotNil(t, p.context.Breakpoint)

	req.value = "42"
	p, err = req.parse()
	require.NoError(t, err)
	assert.True(t, p.value.IsNumber())
}
