// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

func fixed(id string, priority int, result float64) *strategy.Strategy {
	return &strategy.Strategy{
		ID:         id,
		Priority:   priority,
		Values:     []units.Symbol{units.SymbolFill},
		Units:      []units.Unit{units.UnitParentWidth},
		Dimensions: []units.Dimension{units.DimensionWidth},
		Compute: func(units.Value, units.Unit, units.Dimension, units.Context) (float64, error) {
			return result, nil
		},
	}
}

var (
	fill = units.Sym(units.SymbolFill)
	pw   = units.UnitParentWidth
	w    = units.DimensionWidth
)

func TestRegister_DuplicateIsNoOp(t *testing.T) {
	r := New("test")
	first := fixed("a", 5, 1)
	second := fixed("a", 1, 2)

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	assert.Equal(t, 1, r.Len())
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, first, got, "first registration wins")
}

func TestRegister_RejectsInvalid(t *testing.T) {
	r := New("test")
	assert.ErrorIs(t, r.Register(&strategy.Strategy{ID: "no-compute"}), strategy.ErrInvalidStrategy)
	assert.ErrorIs(t, r.Register(nil), strategy.ErrInvalidStrategy)
	assert.Equal(t, 0, r.Len())
}

func TestUnregister(t *testing.T) {
	r := New("test")
	require.NoError(t, r.Register(fixed("a", 1, 1)))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.Empty(t, r.GetStrategiesFor(fill, pw, w))
	assert.Equal(t, 0, r.GetStatistics().Total)
}

func TestGetStrategiesFor(t *testing.T) {
	r := New("test")
	require.NoError(t, r.Register(fixed("a", 2, 1)))
	require.NoError(t, r.Register(fixed("b", 1, 2)))
	require.NoError(t, r.Register(&strategy.Strategy{
		ID:      "other",
		Values:  []units.Symbol{units.SymbolAuto},
		Compute: func(units.Value, units.Unit, units.Dimension, units.Context) (float64, error) { return 0, nil },
	}))

	got := r.GetStrategiesFor(fill, pw, w)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	assert.Empty(t, r.GetStrategiesFor(fill, units.UnitPixel, w))
	assert.Empty(t, r.GetStrategiesFor(units.Num(3), pw, w))
}

func TestGetStrategiesFor_Wildcard(t *testing.T) {
	r := New("test")
	require.NoError(t, r.Register(&strategy.Strategy{
		ID:    "wild",
		Match: func(v units.Value, u units.Unit, _ units.Dimension) bool { return u == units.UnitPercentage },
		Compute: func(units.Value, units.Unit, units.Dimension, units.Context) (float64, error) {
			return 0, nil
		},
	}))
	assert.Len(t, r.GetStrategiesFor(fill, units.UnitPercentage, w), 1)
	assert.Len(t, r.GetStrategiesFor(units.Sym(units.SymbolCenter), units.UnitPercentage, units.DimensionX), 1)
	assert.Empty(t, r.GetStrategiesFor(fill, pw, w))
}

func TestGetBestStrategy_PriorityIndependentOfOrder(t *testing.T) {
	for _, order := range [][]int{{1, 2}, {2, 1}} {
		t.Run(fmt.Sprintf("order %v", order), func(t *testing.T) {
			r := New("test")
			for _, p := range order {
				require.NoError(t, r.Register(fixed(fmt.Sprintf("p%d", p), p, float64(p))))
			}
			best, ok := r.GetBestStrategy(fill, pw, w)
			require.True(t, ok)
			assert.Equal(t, "p1", best.ID)
		})
	}
}

func TestGetBestStrategy_TieGoesToFirstRegistered(t *testing.T) {
	r := New("test")
	require.NoError(t, r.Register(fixed("first", 3, 1)))
	require.NoError(t, r.Register(fixed("second", 3, 2)))

	best, ok := r.GetBestStrategy(fill, pw, w)
	require.True(t, ok)
	assert.Equal(t, "first", best.ID)
}

func TestGetBestStrategy_None(t *testing.T) {
	r := New("test")
	best, ok := r.GetBestStrategy(fill, pw, w)
	assert.False(t, ok)
	assert.Nil(t, best)
}

func TestGetStatistics(t *testing.T) {
	r := New("test")
	require.NoError(t, r.Register(fixed("a", 1, 1)))
	require.NoError(t, r.Register(&strategy.Strategy{
		ID:         "b",
		Values:     []units.Symbol{units.SymbolFill, units.SymbolAuto},
		Units:      []units.Unit{units.UnitPixel},
		Dimensions: []units.Dimension{units.DimensionWidth, units.DimensionHeight},
		Compute:    func(units.Value, units.Unit, units.Dimension, units.Context) (float64, error) { return 0, nil },
	}))

	stats := r.GetStatistics()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByValue[units.SymbolFill])
	assert.Equal(t, 1, stats.ByValue[units.SymbolAuto])
	assert.Equal(t, 1, stats.ByUnit[units.UnitPixel])
	assert.Equal(t, 1, stats.ByUnit[units.UnitParentWidth])
	assert.Equal(t, 2, stats.ByDimension[units.DimensionWidth])
	assert.Equal(t, 1, stats.ByDimension[units.DimensionHeight])
	assert.Equal(t, 0, stats.Wildcards)
}

func TestList_RegistrationOrder(t *testing.T) {
	r := New("test")
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Register(fixed(fmt.Sprintf("s%d", i), 5-i, 0)))
	}
	list := r.List()
	require.Len(t, list, 5)
	for i, s := range list {
		assert.Equal(t, fmt.Sprintf("s%d", i), s.ID)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New("test")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fixed(fmt.Sprintf("s%d", i), i, 0))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.GetStrategiesFor(fill, pw, w)
			_, _ = r.GetBestStrategy(fill, pw, w)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}
