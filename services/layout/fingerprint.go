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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianLayout/services/layout/calculators"
	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/config"
	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// snapshotFormat versions the cache key layout and builtin calculations.
// Bump it when either changes so older snapshots are discarded.
const snapshotFormat = 2

// configFingerprint identifies everything in cfg that shapes the cached
// values of family f: its constraints, its declared strategies and the
// composer kind.
//
// # Outputs
//
//   - string: Hex SHA-256 of the canonical JSON form.
//   - error: Non-nil for an unknown composer kind.
func configFingerprint(cfg config.Config, f units.Family) (string, error) {
	kind, err := composer.ParseKind(cfg.Composer)
	if err != nil {
		return "", err
	}
	payload := struct {
		Format      int                      `json:"format"`
		Family      units.Family             `json:"family"`
		Composer    composer.Kind            `json:"composer"`
		Constraints resolver.Constraints     `json:"constraints"`
		Lookups     []calculators.LookupSpec `json:"lookups"`
	}{
		Format:      snapshotFormat,
		Family:      f,
		Composer:    kind,
		Constraints: cfg.Constraints.For(f),
		Lookups:     cfg.LookupSpecs(f),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s fingerprint: %w", f, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
