// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

func openTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSnapshotStore(db, nil)
}

func sampleEntries(n int) []cache.EntrySnapshot {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]cache.EntrySnapshot, n)
	for i := range out {
		ctx := units.Context{Parent: &units.Rect{Size: units.Size{Width: float64(100 * (i + 1)), Height: 50}}}
		out[i] = cache.EntrySnapshot{
			Key:         cache.NewKey(units.Sym(units.SymbolFill), units.UnitParentWidth, units.DimensionWidth, ctx),
			Value:       float64(100 * (i + 1)),
			CreatedAt:   created,
			TTL:         time.Hour,
			AccessCount: int64(i),
		}
	}
	return out
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	store := NewSnapshotStore(db, nil)
	_, err = store.Save(context.Background(), units.FamilySize, "cfg-a", sampleEntries(2))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "close is idempotent")

	db, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())

	_, entries, err := NewSnapshotStore(db, nil).Load(context.Background(), units.FamilySize)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSnapshotStore_RoundTripPreservesOrderAndKeys(t *testing.T) {
	store := openTestStore(t)
	in := sampleEntries(12)

	header, err := store.Save(context.Background(), units.FamilySize, "cfg-a", in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, header.ID)
	assert.Equal(t, 12, header.Count)

	loaded, out, err := store.Load(context.Background(), units.FamilySize)
	require.NoError(t, err)
	assert.Equal(t, header.ID, loaded.ID)
	assert.Equal(t, "cfg-a", loaded.Fingerprint)
	require.Len(t, out, 12)
	for i := range in {
		assert.Equal(t, in[i].Key, out[i].Key)
		assert.Equal(t, in[i].Value, out[i].Value)
		assert.True(t, in[i].CreatedAt.Equal(out[i].CreatedAt))
		assert.Equal(t, in[i].TTL, out[i].TTL)
	}
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, units.FamilySize, "cfg-a", sampleEntries(5))
	require.NoError(t, err)
	_, err = store.Save(ctx, units.FamilySize, "cfg-a", sampleEntries(2))
	require.NoError(t, err)

	_, out, err := store.Load(ctx, units.FamilySize)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSnapshotStore_FamiliesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, units.FamilySize, "cfg-a", sampleEntries(3))
	require.NoError(t, err)

	_, _, err = store.Load(ctx, units.FamilyScale)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.Delete(ctx, units.FamilySize))
	_, _, err = store.Load(ctx, units.FamilySize)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotStore_RestoresIntoCache(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	src := cache.New()
	parent := units.Context{Parent: &units.Rect{Size: units.Size{Width: 640, Height: 480}}}
	src.Set(units.Sym(units.SymbolFill), units.UnitParentWidth, units.DimensionWidth, parent, 640)

	_, err := store.Save(ctx, units.FamilySize, "cfg-a", src.Snapshot())
	require.NoError(t, err)
	_, entries, err := store.Load(ctx, units.FamilySize)
	require.NoError(t, err)

	dst := cache.New()
	assert.Equal(t, 1, dst.Restore(entries))
	v, ok := dst.Get(units.Sym(units.SymbolFill), units.UnitParentWidth, units.DimensionWidth, parent)
	require.True(t, ok)
	assert.Equal(t, 640.0, v)
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.WithTxn(ctx, nil), context.Canceled)
	assert.ErrorIs(t, db.WithReadTxn(ctx, nil), context.Canceled)
}
