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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// ErrNoSnapshot is returned by Load when no snapshot exists for a family.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Key layout:
//
//	layout/header/<family>       Header
//	layout/cache/<family>/<n>    cache.EntrySnapshot, n zero-padded
const (
	headerPrefix = "layout/header/"
	entryPrefix  = "layout/cache/"
)

func headerKey(f units.Family) []byte {
	return []byte(headerPrefix + string(f))
}

func familyPrefix(f units.Family) []byte {
	return []byte(entryPrefix + string(f) + "/")
}

func entryKey(f units.Family, n int) []byte {
	return []byte(fmt.Sprintf("%s%s/%08d", entryPrefix, f, n))
}

// Header describes a stored snapshot.
type Header struct {
	ID      uuid.UUID    `json:"id"`
	Family  units.Family `json:"family"`
	SavedAt time.Time    `json:"saved_at"`
	Count   int          `json:"count"`

	// Fingerprint identifies the configuration the entries were computed
	// under. Entries are only valid for a reader with the same fingerprint.
	Fingerprint string `json:"fingerprint"`
}

// SnapshotStore saves and loads cache snapshots per measurement family.
//
// Thread Safety: Safe for concurrent use.
type SnapshotStore struct {
	db     *DB
	logger *slog.Logger
}

// NewSnapshotStore creates a store over an open database. A nil logger uses
// slog.Default().
func NewSnapshotStore(db *DB, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{db: db, logger: logger}
}

// Save replaces the family's snapshot with entries, preserving their order.
//
// # Inputs
//
//   - f: Measurement family.
//   - fingerprint: Identity of the configuration that produced entries.
//   - entries: Cache entries in recency order.
//
// # Outputs
//
//   - Header: The header written, with a fresh id.
//   - error: Non-nil if encoding or the transaction fails.
func (s *SnapshotStore) Save(ctx context.Context, f units.Family, fingerprint string, entries []cache.EntrySnapshot) (Header, error) {
	header := Header{
		ID:          uuid.New(),
		Family:      f,
		SavedAt:     time.Now().UTC(),
		Count:       len(entries),
		Fingerprint: fingerprint,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return Header{}, fmt.Errorf("encode snapshot header: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := deletePrefix(txn, familyPrefix(f)); err != nil {
			return err
		}
		for i, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode snapshot entry %d: %w", i, err)
			}
			if err := txn.Set(entryKey(f, i), data); err != nil {
				return fmt.Errorf("write snapshot entry %d: %w", i, err)
			}
		}
		return txn.Set(headerKey(f), headerBytes)
	})
	if err != nil {
		return Header{}, fmt.Errorf("save %s snapshot: %w", f, err)
	}

	s.logger.Debug("cache snapshot saved",
		slog.String("family", string(f)),
		slog.String("snapshot_id", header.ID.String()),
		slog.Int("entries", header.Count))
	return header, nil
}

// Load returns the family's snapshot in stored order.
//
// # Outputs
//
//   - Header: The stored header.
//   - []cache.EntrySnapshot: The entries.
//   - error: ErrNoSnapshot if none was saved, or a decoding failure.
func (s *SnapshotStore) Load(ctx context.Context, f units.Family) (Header, []cache.EntrySnapshot, error) {
	var (
		header  Header
		entries []cache.EntrySnapshot
	)

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(headerKey(f))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &header)
		}); err != nil {
			return fmt.Errorf("decode snapshot header: %w", err)
		}

		prefix := familyPrefix(f)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: prefix})
		defer it.Close()

		entries = make([]cache.EntrySnapshot, 0, header.Count)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e cache.EntrySnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode snapshot entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return Header{}, nil, err
	}
	return header, entries, nil
}

// Delete removes the family's snapshot. Missing snapshots are not an error.
func (s *SnapshotStore) Delete(ctx context.Context, f units.Family) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := deletePrefix(txn, familyPrefix(f)); err != nil {
			return err
		}
		return txn.Delete(headerKey(f))
	})
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}
