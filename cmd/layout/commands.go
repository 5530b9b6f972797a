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
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLayout/pkg/logging"
	"github.com/AleutianAI/AleutianLayout/pkg/ux"
	"github.com/AleutianAI/AleutianLayout/services/layout"
	"github.com/AleutianAI/AleutianLayout/services/layout/config"
	"github.com/AleutianAI/AleutianLayout/services/layout/storage/badger"
	"github.com/AleutianAI/AleutianLayout/services/layout/telemetry"
)

// rootOptions carries process-wide dependencies so tests can isolate them.
type rootOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// app holds state shared by every subcommand. It is populated by setup in
// the root PersistentPreRunE.
type app struct {
	opts rootOptions

	// Global flags.
	configPath string
	outputMode string
	logLevel   string
	stateDir   string

	cfg      config.Config
	logger   *logging.Logger
	printer  *ux.Printer
	engine   *layout.Engine
	shutdown func(context.Context) error
}

// newRootCmd builds the command tree.
func newRootCmd(opts rootOptions) (*cobra.Command, *app) {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "layout",
		Short:         "Resolve symbolic layout values into pixels",
		Long:          "layout resolves FILL, CENTER, VIEWPORT_FIT and other symbolic values\nagainst a parent, scene, viewport and content context.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	pf.StringVarP(&a.outputMode, "output", "o", "auto", "output style: auto, rich or plain")
	pf.StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	pf.StringVar(&a.stateDir, "state-dir", "", "badger directory for cache snapshots")

	root.AddCommand(
		newResolveCmd(a),
		newStrategiesCmd(a),
		newStatsCmd(a),
		newMetricsCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	a.cfg = cfg

	mode, err := ux.ParseMode(a.outputMode)
	if err != nil {
		return err
	}
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.LogDir,
		Service: "aleutian-layout",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	a.logger = logger
	if err != nil {
		a.printer.Warning("file logging disabled: %v", err)
	}

	tcfg := telemetry.FromConfig(cfg.Telemetry, version)
	tcfg.Registerer = a.opts.registerer
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown

	a.engine, err = layout.NewEngine(cfg, layout.WithLogger(logger.Slog()))
	if err != nil {
		return err
	}
	return nil
}

// report prints a command error through the printer when setup got far
// enough to build one.
func (a *app) report(w io.Writer, err error) {
	if a.printer != nil {
		a.printer.Error(err)
		return
	}
	fmt.Fprintln(w, "layout:", err)
}

// close flushes telemetry and closes the log file. Safe to call when setup
// never ran.
func (a *app) close() {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Slog().Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
		a.shutdown = nil
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// openStore opens the snapshot store named by --state-dir or the config's
// storage section. It returns nil when persistence is off.
func (a *app) openStore() (*badger.SnapshotStore, func(), error) {
	var bcfg badger.Config
	switch {
	case a.stateDir != "":
		bcfg = badger.DefaultConfig(a.stateDir)
	case a.cfg.Storage.Path != "":
		bcfg = badger.DefaultConfig(a.cfg.Storage.Path)
	case a.cfg.Storage.InMemory:
		bcfg = badger.InMemoryConfig()
	default:
		return nil, func() {}, nil
	}
	bcfg.GCInterval = 0
	bcfg.Logger = a.logger.Slog()

	db, err := badger.Open(bcfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			a.logger.Slog().Warn("close snapshot store failed", slog.String("error", err.Error()))
		}
	}
	return badger.NewSnapshotStore(db, a.logger.Slog()), closeFn, nil
}

// withSnapshots runs fn between loading and saving cache snapshots.
func (a *app) withSnapshots(ctx context.Context, save bool, fn func() error) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if store != nil {
		n, err := a.engine.LoadSnapshot(ctx, store)
		if err != nil {
			return err
		}
		a.logger.Slog().Debug("cache warm start", slog.Int("restored", n))
	}

	runErr := fn()
	if store != nil && save {
		if err := a.engine.SaveSnapshot(ctx, store); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "layout %s (%s)\n", version, commit)
		},
	}
}
