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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/telemetry"
)

// resolveOutput is the --json shape of a resolve run.
type resolveOutput struct {
	Family     string              `json:"family"`
	Value      string              `json:"value"`
	Unit       string              `json:"unit"`
	Dimension  string              `json:"dimension"`
	Resolution resolver.Resolution `json:"resolution"`
	Repeat     int                 `json:"repeat"`
	CacheHits  int64               `json:"cache_hits"`
	CacheMiss  int64               `json:"cache_misses"`
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		req    request
		repeat int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one symbolic value",
		Example: `  layout resolve --family size --value FILL --unit PARENT_WIDTH --dim WIDTH --parent 800x600
  layout resolve --family position --value CENTER --dim X --parent 800x600+10+0 --scene 1920x1080
  layout resolve --family scale --value VIEWPORT_FIT --dim BOTH --viewport 1280x720 --content 1920x1080 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.resolve(cmd.Context(), req, repeat)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			a.printResolution(out)
			return nil
		},
	}
	req.bind(cmd)
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "resolve the same request n times")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resolution as JSON")
	return cmd
}

// resolve runs req repeat times inside a snapshot session.
func (a *app) resolve(ctx context.Context, req request, repeat int) (resolveOutput, error) {
	if repeat < 1 {
		return resolveOutput{}, errors.New("--repeat must be at least 1")
	}
	p, err := req.parse()
	if err != nil {
		return resolveOutput{}, err
	}

	out := resolveOutput{
		Family:    string(p.family),
		Value:     p.value.String(),
		Unit:      string(p.unit),
		Dimension: string(p.dimension),
		Repeat:    repeat,
	}
	err = a.withSnapshots(ctx, true, func() error {
		r, _ := a.engine.Resolver(p.family)
		before := r.Cache().GetStatistics()
		for range repeat {
			res, err := a.engine.Resolve(ctx, p.family, p.value, p.unit, p.dimension, p.context)
			if err != nil {
				return err
			}
			out.Resolution = res
		}
		after := r.Cache().GetStatistics()
		out.CacheHits = after.HitCount - before.HitCount
		out.CacheMiss = after.MissCount - before.MissCount
		return nil
	})
	return out, err
}

func (a *app) printResolution(out resolveOutput) {
	note := string(out.Resolution.Path)
	switch {
	case out.Resolution.StrategyID != "":
		note += " via " + out.Resolution.StrategyID
	case out.Resolution.Path == resolver.PathComposed:
		note += " from " + strconv.Itoa(out.Resolution.Candidates) + " strategies"
	case out.Resolution.Reason != "":
		note += ": " + out.Resolution.Reason
	}
	a.printer.Value(fmt.Sprintf("%s %s %s", out.Family, out.Value, out.Dimension), out.Resolution.Value, note)

	if out.Repeat > 1 {
		a.printer.KeyValues("cache",
			"runs", strconv.Itoa(out.Repeat),
			"hits", strconv.FormatInt(out.CacheHits, 10),
			"misses", strconv.FormatInt(out.CacheMiss, 10))
	}
}

func newMetricsCmd(a *app) *cobra.Command {
	var (
		req    request
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print Prometheus metrics, optionally after a resolve run",
		Long: "metrics prints every registered metric in the Prometheus text format.\n" +
			"When --value is given the request is resolved first so cache and\n" +
			"composer counters reflect it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.value != "" {
				if _, err := a.resolve(cmd.Context(), req, repeat); err != nil {
					return err
				}
			}
			return telemetry.WriteMetrics(cmd.OutOrStdout(), a.opts.gatherer)
		},
	}
	req.bind(cmd)
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "resolve the request n times before printing")
	return cmd
}
