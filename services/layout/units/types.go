// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package units defines the vocabulary of the layout engine: symbolic values,
// measurement units, dimensions, measurement families and the read-only
// resolution context.
//
// Everything in this package is a plain value type. Nothing here holds
// state, so all types are safe to share across goroutines.
package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnknownSymbol is returned when parsing an unrecognized symbolic value.
	ErrUnknownSymbol = errors.New("unknown symbolic value")

	// ErrUnknownUnit is returned when parsing an unrecognized unit kind.
	ErrUnknownUnit = errors.New("unknown unit kind")

	// ErrUnknownDimension is returned when parsing an unrecognized dimension.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrUnknownFamily is returned when parsing an unrecognized measurement family.
	ErrUnknownFamily = errors.New("unknown measurement family")
)

// =============================================================================
// Symbolic values
// =============================================================================

// Symbol is an enumerated symbolic layout value such as FILL or CENTER.
type Symbol string

const (
	SymbolFill             Symbol = "FILL"
	SymbolAuto             Symbol = "AUTO"
	SymbolFit              Symbol = "FIT"
	SymbolStretch          Symbol = "STRETCH"
	SymbolContent          Symbol = "CONTENT"
	SymbolCenter           Symbol = "CENTER"
	SymbolSceneCenter      Symbol = "SCENE_CENTER"
	SymbolLeft             Symbol = "LEFT"
	SymbolRight            Symbol = "RIGHT"
	SymbolTop              Symbol = "TOP"
	SymbolBottom           Symbol = "BOTTOM"
	SymbolRandom           Symbol = "RANDOM"
	SymbolParentWidth      Symbol = "PARENT_WIDTH"
	SymbolParentHeight     Symbol = "PARENT_HEIGHT"
	SymbolSceneWidth       Symbol = "SCENE_WIDTH"
	SymbolSceneHeight      Symbol = "SCENE_HEIGHT"
	SymbolViewportWidth    Symbol = "VIEWPORT_WIDTH"
	SymbolViewportHeight   Symbol = "VIEWPORT_HEIGHT"
	SymbolViewportFit      Symbol = "VIEWPORT_FIT"
	SymbolBreakpointWidth  Symbol = "BREAKPOINT_WIDTH"
	SymbolBreakpointHeight Symbol = "BREAKPOINT_HEIGHT"
)

// AllSymbols lists every known symbolic value in declaration order.
var AllSymbols = []Symbol{
	SymbolFill, SymbolAuto, SymbolFit, SymbolStretch, SymbolContent,
	SymbolCenter, SymbolSceneCenter, SymbolLeft, SymbolRight, SymbolTop,
	SymbolBottom, SymbolRandom, SymbolParentWidth, SymbolParentHeight,
	SymbolSceneWidth, SymbolSceneHeight, SymbolViewportWidth,
	SymbolViewportHeight, SymbolViewportFit, SymbolBreakpointWidth,
	SymbolBreakpointHeight,
}

// ParseSymbol converts a case-insensitive name into a Symbol.
func ParseSymbol(s string) (Symbol, error) {
	want := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	for _, sym := range AllSymbols {
		if sym == want {
			return sym, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, s)
}

// =============================================================================
// Units
// =============================================================================

// Unit is an enumerated measurement unit, orthogonal to Symbol.
type Unit string

const (
	UnitPixel          Unit = "PIXEL"
	UnitPercentage     Unit = "PERCENTAGE"
	UnitParentWidth    Unit = "PARENT_WIDTH"
	UnitParentHeight   Unit = "PARENT_HEIGHT"
	UnitSceneWidth     Unit = "SCENE_WIDTH"
	UnitSceneHeight    Unit = "SCENE_HEIGHT"
	UnitViewportWidth  Unit = "VIEWPORT_WIDTH"
	UnitViewportHeight Unit = "VIEWPORT_HEIGHT"
	UnitContent        Unit = "CONTENT"
	UnitAuto           Unit = "AUTO"
)

// AllUnits lists every known unit kind in declaration order.
var AllUnits = []Unit{
	UnitPixel, UnitPercentage, UnitParentWidth, UnitParentHeight,
	UnitSceneWidth, UnitSceneHeight, UnitViewportWidth, UnitViewportHeight,
	UnitContent, UnitAuto,
}

// ParseUnit converts a case-insensitive name into a Unit.
func ParseUnit(s string) (Unit, error) {
	want := Unit(strings.ToUpper(strings.TrimSpace(s)))
	for _, u := range AllUnits {
		if u == want {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// =============================================================================
// Dimensions
// =============================================================================

// Dimension declares which axis a computation applies to.
type Dimension string

const (
	DimensionWidth  Dimension = "WIDTH"
	DimensionHeight Dimension = "HEIGHT"
	DimensionBoth   Dimension = "BOTH"
	DimensionX      Dimension = "X"
	DimensionY      Dimension = "Y"
	DimensionXY     Dimension = "XY"
)

// AllDimensions lists every known dimension in declaration order.
var AllDimensions = []Dimension{
	DimensionWidth, DimensionHeight, DimensionBoth,
	DimensionX, DimensionY, DimensionXY,
}

// ParseDimension converts a case-insensitive name into a Dimension.
func ParseDimension(s string) (Dimension, error) {
	want := Dimension(strings.ToUpper(strings.TrimSpace(s)))
	for _, d := range AllDimensions {
		if d == want {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// Vertical reports whether the dimension measures along the vertical axis.
// BOTH and XY resolve along the horizontal axis.
func (d Dimension) Vertical() bool {
	return d == DimensionHeight || d == DimensionY
}

// =============================================================================
// Measurement families
// =============================================================================

// Family groups calculations by what they produce. Each family has a
// documented fallback used when no strategy applies.
type Family string

const (
	FamilySize     Family = "size"
	FamilyPosition Family = "position"
	FamilyScale    Family = "scale"
)

// Documented fallback constants per measurement family.
const (
	FallbackSize     = 100.0
	FallbackPosition = 0.0
	FallbackScale    = 1.0
)

// AllFamilies lists every measurement family.
var AllFamilies = []Family{FamilySize, FamilyPosition, FamilyScale}

// ParseFamily converts a case-insensitive name into a Family.
func ParseFamily(s string) (Family, error) {
	want := Family(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range AllFamilies {
		if f == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// Fallback returns the family's default value for unmatched lookups.
func (f Family) Fallback() float64 {
	switch f {
	case FamilyPosition:
		return FallbackPosition
	case FamilyScale:
		return FallbackScale
	default:
		return FallbackSize
	}
}

// =============================================================================
// Values
// =============================================================================

// Value is either a symbolic tag or a raw number.
//
// The zero Value is the number 0. Value is comparable and is used directly
// inside cache keys.
type Value struct {
	Symbol   Symbol
	Number   float64
	isNumber bool
}

// Sym returns a symbolic Value.
func Sym(s Symbol) Value {
	return Value{Symbol: s}
}

// Num returns a numeric Value.
func Num(n float64) Value {
	return Value{Number: n, isNumber: true}
}

// IsNumber reports whether the value is a raw number.
func (v Value) IsNumber() bool {
	return v.isNumber || v.Symbol == ""
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	if v.IsNumber() {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return string(v.Symbol)
}

// ParseValue parses either a number ("42", "-3.5") or a symbolic name ("fill").
func ParseValue(s string) (Value, error) {
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return Num(n), nil
	}
	sym, err := ParseSymbol(s)
	if err != nil {
		return Value{}, err
	}
	return Sym(sym), nil
}
