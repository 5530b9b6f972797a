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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

func newStrategiesCmd(a *app) *cobra.Command {
	var family string
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			families := units.AllFamilies
			if family != "" {
				f, err := units.ParseFamily(family)
				if err != nil {
					return err
				}
				families = []units.Family{f}
			}

			var rows [][]string
			for _, f := range families {
				r, _ := a.engine.Resolver(f)
				list := r.Registry().List()
				sort.SliceStable(list, func(i, j int) bool {
					if list[i].Priority != list[j].Priority {
						return list[i].Priority < list[j].Priority
					}
					return list[i].ID < list[j].ID
				})
				for _, s := range list {
					rows = append(rows, strategyRow(f, s))
				}
			}
			a.printer.Title(fmt.Sprintf("%d strategies", len(rows)))
			a.printer.Table([]string{"family", "id", "priority", "values", "units", "dimensions"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "only list one family")
	return cmd
}

func strategyRow(f units.Family, s *strategy.Strategy) []string {
	return []string{
		string(f),
		s.ID,
		strconv.Itoa(s.Priority),
		joinOrAny(s.Values),
		joinOrAny(s.Units),
		joinOrAny(s.Dimensions),
	}
}

func joinOrAny[T ~string](items []T) string {
	if len(items) == 0 {
		return "*"
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	return strings.Join(parts, ",")
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print registry, cache and composer statistics",
		Long: "stats prints per-family diagnostics. With --state-dir the cache\n" +
			"snapshot is loaded first, so sizes reflect the persisted state.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshots(cmd.Context(), false, func() error {
				return a.printStats(cmd, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func (a *app) printStats(cmd *cobra.Command, asJSON bool) error {
	stats := a.engine.Stats()
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	rows := make([][]string, 0, len(stats.Families))
	for _, fs := range stats.Families {
		rows = append(rows, []string{
			string(fs.Family),
			strconv.Itoa(fs.Registry.Total),
			fmt.Sprintf("%d/%d", fs.Cache.Size, fs.Cache.MaxSize),
			strconv.FormatInt(fs.Cache.HitCount, 10),
			strconv.FormatInt(fs.Cache.MissCount, 10),
			strconv.FormatFloat(fs.Cache.HitRate, 'f', 2, 64),
			strconv.FormatInt(fs.Cache.EvictionCount, 10),
			string(fs.Composer),
		})
	}
	a.printer.Title("engine " + stats.EngineID)
	a.printer.Table([]string{"family", "strategies", "cache", "hits", "misses", "hit rate", "evictions", "composer"}, rows)
	return nil
}
