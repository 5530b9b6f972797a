// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/config"
	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/storage/badger"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	fill  = units.Sym(units.SymbolFill)
	scene = units.Context{
		Parent: &units.Rect{Size: units.Size{Width: 800, Height: 600}, X: 10, Y: 20},
		Scene:  &units.Size{Width: 1920, Height: 1080},
	}
)

func halfScene() config.StrategyConfig {
	factor := 0.5
	return config.StrategyConfig{
		ID:         "half-scene",
		Family:     "size",
		Priority:   1,
		Value:      "fill",
		Unit:       "scene_width",
		Dimensions: []string{"width"},
		Source:     "scene.width",
		Factor:     &factor,
	}
}

func newEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newEngine(t, config.Default())
	assert.NotEmpty(t, e.ID())

	for _, f := range units.AllFamilies {
		r, ok := e.Resolver(f)
		require.True(t, ok, f)
		assert.Equal(t, f, r.Family())
		assert.Equal(t, composer.KindWeightedAverage, r.Composer().Kind())
		assert.Positive(t, r.Registry().Len())
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Composer = "median"
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewEngine_RejectsBuiltinShadowing(t *testing.T) {
	cfg := config.Default()
	s := halfScene()
	s.ID = "size.fill.parent"
	cfg.Strategies = []config.StrategyConfig{s}

	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrStrategyConflict)
}

func TestEngine_FamilyDelegation(t *testing.T) {
	e := newEngine(t, config.Default())
	ctx := context.Background()

	w, err := e.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	assert.Equal(t, 800.0, w)

	x, err := e.Position(ctx, units.Sym(units.SymbolLeft), units.UnitPixel, units.DimensionX, scene)
	require.NoError(t, err)
	assert.Equal(t, 10.0, x)

	withContent := scene
	withContent.Content = &units.Size{Width: 400, Height: 400}
	s, err := e.Scale(ctx, units.Sym(units.SymbolFit), units.UnitPixel, units.DimensionBoth, withContent)
	require.NoError(t, err)
	assert.Equal(t, 1.5, s)

	_, err = e.Resolve(ctx, units.Family("depth"), fill, units.UnitPixel, units.DimensionWidth, scene)
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestEngine_CacheSeparatesOriginAndBreakpoint(t *testing.T) {
	e := newEngine(t, config.Default())
	ctx := context.Background()
	left := units.Sym(units.SymbolLeft)
	at := func(x float64) units.Context {
		return units.Context{Parent: &units.Rect{Size: units.Size{Width: 800, Height: 600}, X: x}}
	}

	res, err := e.Resolve(ctx, units.FamilyPosition, left, units.UnitPixel, units.DimensionX, at(0))
	require.NoError(t, err)
	assert.Equal(t, resolver.PathDirect, res.Path)
	assert.Equal(t, 0.0, res.Value)

	res, err = e.Resolve(ctx, units.FamilyPosition, left, units.UnitPixel, units.DimensionX, at(500))
	require.NoError(t, err)
	assert.Equal(t, resolver.PathDirect, res.Path)
	assert.Equal(t, 500.0, res.Value)

	bpw := units.Sym(units.SymbolBreakpointWidth)
	res, err = e.Resolve(ctx, units.FamilySize, bpw, units.UnitPixel, units.DimensionWidth, at(0))
	require.NoError(t, err)
	assert.Equal(t, resolver.PathFallback, res.Path)
	assert.Equal(t, 100.0, res.Value)

	withBP := at(0)
	withBP.Breakpoint = &units.Breakpoint{Name: "desktop", Size: units.Size{Width: 1280, Height: 720}}
	res, err = e.Resolve(ctx, units.FamilySize, bpw, units.UnitPixel, units.DimensionWidth, withBP)
	require.NoError(t, err)
	assert.Equal(t, resolver.PathDirect, res.Path)
	assert.Equal(t, 1280.0, res.Value)
}

func TestEngine_DeclaredStrategyComposes(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []config.StrategyConfig{halfScene()}
	e := newEngine(t, cfg)

	res, err := e.Resolve(context.Background(), units.FamilySize, fill, units.UnitSceneWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	// half-scene ranks first: (960*1 + 1920*0.5) / 1.5
	assert.Equal(t, resolver.PathComposed, res.Path)
	assert.InDelta(t, 1280.0, res.Value, 1e-9)
	assert.Equal(t, 2, res.Candidates)
}

func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, config.Default())
	ctx := context.Background()

	for range 2 {
		_, err := e.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
		require.NoError(t, err)
	}

	stats := e.Stats()
	assert.Equal(t, e.ID(), stats.EngineID)
	require.Len(t, stats.Families, len(units.AllFamilies))

	size, ok := stats.Family(units.FamilySize)
	require.True(t, ok)
	assert.Equal(t, int64(1), size.Cache.HitCount)
	assert.Equal(t, int64(1), size.Cache.MissCount)
	assert.Equal(t, 1, size.Cache.Size)
	assert.Equal(t, composer.KindWeightedAverage, size.Composer)
	assert.Positive(t, size.Registry.Total)

	_, ok = stats.Family(units.Family("depth"))
	assert.False(t, ok)
}

func TestEngine_Reload(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []config.StrategyConfig{halfScene()}
	e := newEngine(t, cfg)
	ctx := context.Background()

	_, err := e.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)

	next := config.Default()
	next.Composer = "priority"
	hi := 500.0
	next.Constraints.Size.Max = &hi
	require.NoError(t, e.Reload(next))

	assert.Equal(t, "priority", e.Config().Composer)
	size, _ := e.Stats().Family(units.FamilySize)
	assert.Equal(t, composer.KindPriority, size.Composer)
	assert.Zero(t, size.Cache.Size, "reload clears caches")

	w, err := e.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	assert.Equal(t, 500.0, w)

	// half-scene is gone, so the builtin answers alone.
	res, err := e.Resolve(ctx, units.FamilySize, fill, units.UnitSceneWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	assert.Equal(t, resolver.PathDirect, res.Path)
	assert.Equal(t, "size.fill.scene", res.StrategyID)
}

func TestEngine_ReloadKeepsComposerWhenKindUnchanged(t *testing.T) {
	cfg := config.Default()
	cfg.Composer = "adaptive"
	e := newEngine(t, cfg)

	r, _ := e.Resolver(units.FamilySize)
	before := r.Composer()

	next := cfg
	next.Cache.MaxSize = 10
	require.NoError(t, e.Reload(next))
	assert.Same(t, before, r.Composer())
	assert.Equal(t, 10, r.Cache().GetStatistics().MaxSize)
}

func TestEngine_ReloadRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []config.StrategyConfig{halfScene()}
	e := newEngine(t, cfg)

	bad := config.Default()
	s := halfScene()
	s.ID = "size.content"
	bad.Strategies = []config.StrategyConfig{s}
	assert.ErrorIs(t, e.Reload(bad), ErrStrategyConflict)

	r, _ := e.Resolver(units.FamilySize)
	_, ok := r.Registry().Get("half-scene")
	assert.True(t, ok, "failed reload leaves the engine unchanged")
	assert.Len(t, e.Config().Strategies, 1)
}

func TestEngine_CleanupUsesClock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.Default()
	cfg.Cache.TTL = config.Duration(time.Minute)
	e := newEngine(t, cfg, WithClock(clock.Now))
	ctx := context.Background()

	_, err := e.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	_, err = e.Scale(ctx, units.Sym(units.SymbolRandom), units.UnitPixel, units.DimensionBoth, scene)
	require.NoError(t, err)

	assert.Zero(t, e.Cleanup())
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, e.Cleanup())
}

func TestEngine_StartJanitors(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.CleanupInterval = 0
	e := newEngine(t, cfg)

	select {
	case <-e.StartJanitors(context.Background()):
	case <-time.After(time.Second):
		t.Fatal("janitors with no interval should be done immediately")
	}

	cfg.Cache.CleanupInterval = config.Duration(5 * time.Millisecond)
	e = newEngine(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := e.StartJanitors(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitors did not stop")
	}
}

func TestEngine_SnapshotWarmStart(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	store := badger.NewSnapshotStore(db, nil)
	ctx := context.Background()

	first := newEngine(t, config.Default())
	_, err = first.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	require.NoError(t, first.SaveSnapshot(ctx, store))

	second := newEngine(t, config.Default())
	restored, err := second.LoadSnapshot(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	res, err := second.Resolve(ctx, units.FamilySize, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	assert.Equal(t, resolver.PathHit, res.Path)
	assert.Equal(t, 800.0, res.Value)
}

func TestEngine_LoadSnapshotDiscardsOtherConfiguration(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	store := badger.NewSnapshotStore(db, nil)
	ctx := context.Background()

	unbounded := newEngine(t, config.Default())
	w, err := unbounded.Size(ctx, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	require.Equal(t, 800.0, w)
	require.NoError(t, unbounded.SaveSnapshot(ctx, store))

	cfg := config.Default()
	lo, hi := 50.0, 100.0
	cfg.Constraints.Size = resolver.Constraints{Min: &lo, Max: &hi}
	bounded := newEngine(t, cfg)

	restored, err := bounded.LoadSnapshot(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, restored)

	res, err := bounded.Resolve(ctx, units.FamilySize, fill, units.UnitParentWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	assert.Equal(t, resolver.PathDirect, res.Path)
	assert.Equal(t, 100.0, res.Value, "values clamped under other bounds are never served")

	_, _, err = store.Load(ctx, units.FamilySize)
	assert.ErrorIs(t, err, badger.ErrNoSnapshot, "mismatched snapshot is deleted")
	_, _, err = store.Load(ctx, units.FamilyPosition)
	assert.NoError(t, err, "families with matching configuration keep theirs")
}

func TestEngine_LoadSnapshotDiscardsOtherComposer(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	store := badger.NewSnapshotStore(db, nil)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Strategies = []config.StrategyConfig{halfScene()}
	first := newEngine(t, cfg)
	_, err = first.Size(ctx, fill, units.UnitSceneWidth, units.DimensionWidth, scene)
	require.NoError(t, err)
	require.NoError(t, first.SaveSnapshot(ctx, store))

	cfg.Composer = "priority"
	second := newEngine(t, cfg)
	restored, err := second.LoadSnapshot(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, restored)
}

func TestConfigFingerprint(t *testing.T) {
	base := config.Default()
	a, err := configFingerprint(base, units.FamilySize)
	require.NoError(t, err)
	again, err := configFingerprint(config.Default(), units.FamilySize)
	require.NoError(t, err)
	assert.Equal(t, a, again)

	other, err := configFingerprint(base, units.FamilyScale)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	declared := config.Default()
	declared.Strategies = []config.StrategyConfig{halfScene()}
	withLookup, err := configFingerprint(declared, units.FamilySize)
	require.NoError(t, err)
	assert.NotEqual(t, a, withLookup)

	unaffected, err := configFingerprint(declared, units.FamilyPosition)
	require.NoError(t, err)
	plain, err := configFingerprint(base, units.FamilyPosition)
	require.NoError(t, err)
	assert.Equal(t, plain, unaffected, "size declarations do not touch position")
}

func TestEngine_LoadSnapshotEmptyStore(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	e := newEngine(t, config.Default())
	restored, err := e.LoadSnapshot(context.Background(), badger.NewSnapshotStore(db, nil))
	require.NoError(t, err)
	assert.Zero(t, restored)
}
