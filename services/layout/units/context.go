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
	"errors"
	"fmt"
	"math"
)

// ErrMalformedContext is returned when a context carries non-finite or
// negative dimensions. This is a caller programming error.
var ErrMalformedContext = errors.New("malformed layout context")

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width" toml:"width"`
	Height float64 `json:"height" yaml:"height" toml:"height"`
}

// Axis returns the height for vertical dimensions and the width otherwise.
func (s Size) Axis(d Dimension) float64 {
	if d.Vertical() {
		return s.Height
	}
	return s.Width
}

// Rect is a positioned Size. Only the parent section carries an origin.
type Rect struct {
	Size
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
}

// Origin returns Y for vertical dimensions and X otherwise.
func (r Rect) Origin(d Dimension) float64 {
	if d.Vertical() {
		return r.Y
	}
	return r.X
}

// Breakpoint is the active responsive breakpoint.
type Breakpoint struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Size
}

// Context is a read-only snapshot of the dimensions surrounding the object
// being laid out. Every section is optional; a nil section is "absent".
//
// The engine never mutates a Context.
type Context struct {
	Parent     *Rect       `json:"parent,omitempty"`
	Scene      *Size       `json:"scene,omitempty"`
	Viewport   *Size       `json:"viewport,omitempty"`
	Content    *Size       `json:"content,omitempty"`
	Breakpoint *Breakpoint `json:"breakpoint,omitempty"`
}

// Validate rejects NaN, infinite and negative-size fields.
//
// Outputs:
//
//	error - Wraps ErrMalformedContext naming the offending field, or nil.
func (c Context) Validate() error {
	check := func(sec, field string, v float64, allowNegative bool) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s.%s is not finite", ErrMalformedContext, sec, field)
		}
		if !allowNegative && v < 0 {
			return fmt.Errorf("%w: %s.%s is negative", ErrMalformedContext, sec, field)
		}
		return nil
	}
	type named struct {
		name string
		size *Size
	}
	sizes := []named{{"scene", c.Scene}, {"viewport", c.Viewport}, {"content", c.Content}}
	if c.Parent != nil {
		sizes = append(sizes, named{"parent", &c.Parent.Size})
		if err := check("parent", "x", c.Parent.X, true); err != nil {
			return err
		}
		if err := check("parent", "y", c.Parent.Y, true); err != nil {
			return err
		}
	}
	if c.Breakpoint != nil {
		sizes = append(sizes, named{"breakpoint", &c.Breakpoint.Size})
	}
	for _, s := range sizes {
		if s.size == nil {
			continue
		}
		if err := check(s.name, "width", s.size.Width, false); err != nil {
			return err
		}
		if err := check(s.name, "height", s.size.Height, false); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Fingerprint
// =============================================================================

// section is one width/height pair of a fingerprint. Present is false for
// absent sections so that a missing section never equals a zero-sized one.
type section struct {
	Present bool
	Width   float64
	Height  float64
}

func sectionOf(s *Size) section {
	if s == nil {
		return section{}
	}
	return section{Present: true, Width: canon(s.Width), Height: canon(s.Height)}
}

// canon maps negative zero to zero.
func canon(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

// ContextFingerprint is the canonical, comparable form of a Context used for
// cache keys. It covers every field a strategy can read: the width/height
// pairs of all five sections and the parent origin. The breakpoint name is
// left out; no computation reads it.
//
// Two contexts with equal fields produce equal fingerprints regardless of
// pointer identity. Equality is structural, so distinct inputs never collide.
type ContextFingerprint struct {
	Parent       section
	ParentOrigin origin
	Scene        section
	Viewport     section
	Content      section
	Breakpoint   section
}

// origin is the parent's position. It is zero when the parent is absent,
// which Parent.Present already distinguishes.
type origin struct {
	X float64
	Y float64
}

// Fingerprint returns the canonical cache fingerprint of the context.
// Negative zero is folded into zero so the fingerprint matches map equality.
func Fingerprint(c Context) ContextFingerprint {
	fp := ContextFingerprint{
		Scene:    sectionOf(c.Scene),
		Viewport: sectionOf(c.Viewport),
		Content:  sectionOf(c.Content),
	}
	if c.Parent != nil {
		fp.Parent = sectionOf(&c.Parent.Size)
		fp.ParentOrigin = origin{X: canon(c.Parent.X), Y: canon(c.Parent.Y)}
	}
	if c.Breakpoint != nil {
		fp.Breakpoint = sectionOf(&c.Breakpoint.Size)
	}
	return fp
}

// Floats flattens the fingerprint in a fixed order, encoding presence as
// 1 or 0 before each pair. Equal fingerprints flatten identically.
func (f ContextFingerprint) Floats() []float64 {
	out := make([]float64, 0, 17)
	for _, s := range []section{f.Parent, f.Scene, f.Viewport, f.Content, f.Breakpoint} {
		present := 0.0
		if s.Present {
			present = 1
		}
		out = append(out, present, s.Width, s.Height)
	}
	return append(out, f.ParentOrigin.X, f.ParentOrigin.Y)
}

// Seed folds the four size sections into a 64-bit value for deterministic
// pseudo-random strategies. Collisions here only affect randomness, never
// cache identity.
func (f ContextFingerprint) Seed() uint64 {
	var h uint64 = 1469598103934665603
	mix := func(v float64) {
		h ^= math.Float64bits(v)
		h *= 1099511628211
	}
	for _, s := range []section{f.Parent, f.Scene, f.Viewport, f.Content} {
		if !s.Present {
			mix(-1)
			continue
		}
		mix(s.Width)
		mix(s.Height)
	}
	return h
}

// =============================================================================
// Sections and field lookup
// =============================================================================

// Section names one optional part of a Context.
type Section string

const (
	SectionParent     Section = "parent"
	SectionScene      Section = "scene"
	SectionViewport   Section = "viewport"
	SectionContent    Section = "content"
	SectionBreakpoint Section = "breakpoint"
)

// Has reports whether the named section is present.
func (c Context) Has(s Section) bool {
	switch s {
	case SectionParent:
		return c.Parent != nil
	case SectionScene:
		return c.Scene != nil
	case SectionViewport:
		return c.Viewport != nil
	case SectionContent:
		return c.Content != nil
	case SectionBreakpoint:
		return c.Breakpoint != nil
	}
	return false
}

// Lookup reads a single numeric field addressed as "section.field", for
// example "scene.width" or "parent.x". The second result is false when the
// section is absent or the address is unknown.
func (c Context) Lookup(field string) (float64, bool) {
	switch field {
	case "parent.width", "parent.height", "parent.x", "parent.y":
		if c.Parent == nil {
			return 0, false
		}
		switch field {
		case "parent.width":
			return c.Parent.Width, true
		case "parent.height":
			return c.Parent.Height, true
		case "parent.x":
			return c.Parent.X, true
		default:
			return c.Parent.Y, true
		}
	case "scene.width", "scene.height":
		return sizeField(c.Scene, field == "scene.height")
	case "viewport.width", "viewport.height":
		return sizeField(c.Viewport, field == "viewport.height")
	case "content.width", "content.height":
		return sizeField(c.Content, field == "content.height")
	case "breakpoint.width", "breakpoint.height":
		if c.Breakpoint == nil {
			return 0, false
		}
		return sizeField(&c.Breakpoint.Size, field == "breakpoint.height")
	}
	return 0, false
}

// LookupFields lists every address accepted by Lookup.
var LookupFields = []string{
	"parent.width", "parent.height", "parent.x", "parent.y",
	"scene.width", "scene.height",
	"viewport.width", "viewport.height",
	"content.width", "content.height",
	"breakpoint.width", "breakpoint.height",
}

func sizeField(s *Size, height bool) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if height {
		return s.Height, true
	}
	return s.Width, true
}
