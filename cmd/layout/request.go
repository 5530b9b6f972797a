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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var errBadGeometry = errors.New("invalid geometry")

// request holds the flags that describe one resolution.
type request struct {
	family     string
	value      string
	unit       string
	dimension  string
	parent     string
	scene      string
	viewport   string
	content    string
	breakpoint string
}

func (r *request) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&r.family, "family", "size", "measurement family: size, position or scale")
	f.StringVar(&r.value, "value", "", "symbolic value (FILL, CENTER, ...) or a number")
	f.StringVar(&r.unit, "unit", "PIXEL", "unit kind")
	f.StringVar(&r.dimension, "dim", "WIDTH", "dimension: WIDTH, HEIGHT, BOTH, X, Y or XY")
	f.StringVar(&r.parent, "parent", "", "parent rect as WxH or WxH+X+Y")
	f.StringVar(&r.scene, "scene", "", "scene size as WxH")
	f.StringVar(&r.viewport, "viewport", "", "viewport size as WxH")
	f.StringVar(&r.content, "content", "", "content size as WxH")
	f.StringVar(&r.breakpoint, "breakpoint", "", "active breakpoint as NAME:WxH")
}

// resolved is a parsed request.
type resolved struct {
	family    units.Family
	value     units.Value
	unit      units.Unit
	dimension units.Dimension
	context   units.Context
}

func (r *request) parse() (resolved, error) {
	var (
		out resolved
		err error
	)
	if out.family, err = units.ParseFamily(r.family); err != nil {
		return out, err
	}
	if r.value == "" {
		return out, errors.New("--value is required")
	}
	if out.value, err = units.ParseValue(r.value); err != nil {
		return out, err
	}
	if out.unit, err = units.ParseUnit(r.unit); err != nil {
		return out, err
	}
	if out.dimension, err = units.ParseDimension(r.dimension); err != nil {
		return out, err
	}
	if out.context.Parent, err = parseRect(r.parent); err != nil {
		return out, fmt.Errorf("--parent: %w", err)
	}
	if out.context.Scene, err = parseSize(r.scene); err != nil {
		return out, fmt.Errorf("--scene: %w", err)
	}
	if out.context.Viewport, err = parseSize(r.viewport); err != nil {
		return out, fmt.Errorf("--viewport: %w", err)
	}
	if out.context.Content, err = parseSize(r.content); err != nil {
		return out, fmt.Errorf("--content: %w", err)
	}
	if out.context.Breakpoint, err = parseBreakpoint(r.breakpoint); err != nil {
		return out, fmt.Errorf("--breakpoint: %w", err)
	}
	return out, nil
}

// parseSize parses "WxH". Empty input is an absent section.
func parseSize(s string) (*units.Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return nil, fmt.Errorf("%w: %q, want WxH", errBadGeometry, s)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: width %q", errBadGeometry, w)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: height %q", errBadGeometry, h)
	}
	return &units.Size{Width: width, Height: height}, nil
}

// parseRect parses "WxH" or "WxH+X+Y".
func parseRect(s string) (*units.Rect, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "+")
	if len(parts) != 1 && len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q, want WxH or WxH+X+Y", errBadGeometry, s)
	}
	size, err := parseSize(parts[0])
	if err != nil {
		return nil, err
	}
	if size == nil {
		return nil, fmt.Errorf("%w: %q has no size", errBadGeometry, s)
	}
	rect := &units.Rect{Size: *size}
	if len(parts) == 3 {
		if rect.X, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return nil, fmt.Errorf("%w: x %q", errBadGeometry, parts[1])
		}
		if rect.Y, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return nil, fmt.Errorf("%w: y %q", errBadGeometry, parts[2])
		}
	}
	return rect, nil
}

// parseBreakpoint parses "NAME:WxH".
func parseBreakpoint(s string) (*units.Breakpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	name, dims, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q, want NAME:WxH", errBadGeometry, s)
	}
	size, err := parseSize(dims)
	if err != nil {
		return nil, err
	}
	if size == nil {
		return nil, fmt.Errorf("%w: %q has no size", errBadGeometry, s)
	}
	return &units.Breakpoint{Name: name, Size: *size}, nil
}
