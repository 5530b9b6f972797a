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
	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/registry"
	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// FamilyStats is the diagnostic view of one family's resolver.
type FamilyStats struct {
	Family      units.Family                `json:"family"`
	Cache       cache.Statistics            `json:"cache"`
	Registry    registry.Statistics         `json:"registry"`
	Composer    composer.Kind               `json:"composer"`
	Performance composer.PerformanceMetrics `json:"performance"`
	Constraints resolver.Constraints        `json:"constraints"`
}

// Stats aggregates diagnostics across families.
type Stats struct {
	EngineID string        `json:"engine_id"`
	Families []FamilyStats `json:"families"`
}

// Family returns the entry for f.
func (s Stats) Family(f units.Family) (FamilyStats, bool) {
	for _, fs := range s.Families {
		if fs.Family == f {
			return fs, true
		}
	}
	return FamilyStats{}, false
}

// Stats collects cache, registry and composer diagnostics in family order.
func (e *Engine) Stats() Stats {
	out := Stats{EngineID: e.ID(), Families: make([]FamilyStats, 0, len(units.AllFamilies))}
	for _, f := range units.AllFamilies {
		r := e.families[f].resolver
		comp := r.Composer()
		out.Families = append(out.Families, FamilyStats{
			Family:      f,
			Cache:       r.Cache().GetStatistics(),
			Registry:    r.Registry().GetStatistics(),
			Composer:    comp.Kind(),
			Performance: comp.GetPerformanceMetrics(),
			Constraints: r.Constraints(),
		})
	}
	return out
}
