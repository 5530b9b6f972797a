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
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLayout/services/layout/config"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		debounce time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Hot-reload the config file until interrupted",
		Long: "watch keeps an engine running, reloads it whenever the --config file\n" +
			"changes and sweeps expired cache entries on cache.cleanup_interval.\n" +
			"Invalid edits are reported and the previous configuration stays active.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.configPath == "" {
				return errors.New("watch requires --config")
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			w, err := config.NewWatcher(a.configPath, func(cfg config.Config) {
				if err := a.engine.Reload(cfg); err != nil {
					a.printer.Warning("reload rejected: %v", err)
					return
				}
				a.printer.Success("reloaded %s (composer %s, %d declared strategies)",
					a.configPath, cfg.Composer, len(cfg.Strategies))
			},
				config.WithDebounce(debounce),
				config.WithWatchLogger(a.logger.Slog()),
			)
			if err != nil {
				return err
			}

			jctx, stopJanitors := context.WithCancel(ctx)
			janitors := a.engine.StartJanitors(jctx)
			a.logger.Slog().Info("watching config",
				slog.String("path", a.configPath),
				slog.String("engine_id", a.engine.ID()))

			err = w.Run(ctx)
			stopJanitors()
			<-janitors
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "quiet period before a reload")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}
