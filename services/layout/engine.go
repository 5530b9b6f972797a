// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout resolves symbolic layout quantities into pixel values.
//
// An Engine owns one resolver per measurement family (size, position and
// scale). Each resolver has its own strategy registry, result cache and
// composer, so the families never share cache entries or adaptive history.
//
//	cfg, _ := config.Load("layout.yaml")
//	eng, err := layout.NewEngine(cfg)
//	if err != nil {
//	    return err
//	}
//	w, err := eng.Size(ctx, units.Sym(units.SymbolFill), units.UnitParentWidth, units.DimensionWidth, uctx)
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/calculators"
	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/config"
	"github.com/AleutianAI/AleutianLayout/services/layout/registry"
	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/storage/badger"
	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var (
	// ErrStrategyConflict is returned when a declared strategy reuses the id
	// of a builtin.
	ErrStrategyConflict = errors.New("declared strategy id conflicts with a builtin")

	// ErrUnknownFamily is returned for a family the engine does not serve.
	ErrUnknownFamily = units.ErrUnknownFamily
)

// =============================================================================
// Options
// =============================================================================

// Options configures an Engine beyond what the config file covers.
type Options struct {
	// Logger for engine, resolver and cache output. Default: slog.Default().
	Logger *slog.Logger

	// Clock drives cache expiry and composer timing. Default: time.Now.
	Clock func() time.Time
}

// Option is a functional option for NewEngine.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// =============================================================================
// Engine
// =============================================================================

// family bundles what the engine keeps per measurement family.
type family struct {
	resolver *resolver.Resolver
	builtins map[string]struct{}
	declared []string
}

// Engine is the entry point for layout resolution.
//
// # Thread Safety
//
// Resolution methods are safe for concurrent use. Reload is serialized with
// itself; requests racing a reload may see either configuration.
type Engine struct {
	id       uuid.UUID
	options  Options
	logger   *slog.Logger
	families map[units.Family]*family

	mu  sync.RWMutex
	cfg config.Config
}

// NewEngine builds an engine from cfg.
//
// # Description
//
// Each family gets a registry holding the builtin strategies plus the
// strategies cfg declares for it, a cache sized by cfg.Cache, the composer
// named by cfg.Composer and the family's constraints.
//
// # Outputs
//
//   - *Engine: The engine.
//   - error: config.ErrInvalidConfig for an invalid cfg, or
//     ErrStrategyConflict when a declared id shadows a builtin.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := Options{Logger: slog.Default(), Clock: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	e := &Engine{
		id:       uuid.New(),
		options:  options,
		families: make(map[units.Family]*family, len(units.AllFamilies)),
		cfg:      cfg,
	}
	e.logger = options.Logger.With(slog.String("engine_id", e.id.String()))

	for _, f := range units.AllFamilies {
		fam, err := e.buildFamily(cfg, f)
		if err != nil {
			return nil, fmt.Errorf("build %s resolver: %w", f, err)
		}
		e.families[f] = fam
	}

	e.logger.Info("layout engine ready",
		slog.String("composer", cfg.Composer),
		slog.Int("cache_max_size", cfg.Cache.MaxSize),
		slog.Duration("cache_ttl", cfg.Cache.TTL.Std()),
		slog.Int("declared_strategies", len(cfg.Strategies)))
	return e, nil
}

func (e *Engine) buildFamily(cfg config.Config, f units.Family) (*family, error) {
	reg := registry.New(string(f), registry.WithLogger(e.logger))
	if err := calculators.RegisterBuiltins(reg, f); err != nil {
		return nil, err
	}
	builtins := make(map[string]struct{}, reg.Len())
	for _, s := range reg.List() {
		builtins[s.ID] = struct{}{}
	}

	declared, err := declaredStrategies(cfg, f, builtins)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(declared))
	for _, s := range declared {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
		ids = append(ids, s.ID)
	}

	comp, err := e.newComposer(cfg.Composer)
	if err != nil {
		return nil, err
	}

	c := cache.New(
		cache.WithName(string(f)),
		cache.WithMaxSize(cfg.Cache.MaxSize),
		cache.WithTTL(cfg.Cache.TTL.Std()),
		cache.WithClock(e.options.Clock),
		cache.WithLogger(e.logger),
	)

	r, err := resolver.New(f, reg, c,
		resolver.WithLogger(e.logger),
		resolver.WithComposer(comp),
		resolver.WithConstraints(cfg.Constraints.For(f)),
	)
	if err != nil {
		return nil, err
	}
	return &family{resolver: r, builtins: builtins, declared: ids}, nil
}

func (e *Engine) newComposer(name string) (composer.Composer, error) {
	kind, err := composer.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return composer.New(kind,
		composer.WithLogger(e.logger),
		composer.WithClock(e.options.Clock))
}

// declaredStrategies builds the lookup strategies cfg declares for f.
func declaredStrategies(cfg config.Config, f units.Family, builtins map[string]struct{}) ([]*strategy.Strategy, error) {
	specs := cfg.LookupSpecs(f)
	out := make([]*strategy.Strategy, 0, len(specs))
	for _, spec := range specs {
		if _, clash := builtins[spec.ID]; clash {
			return nil, fmt.Errorf("%w: %s", ErrStrategyConflict, spec.ID)
		}
		s, err := calculators.NewLookup(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ID returns the engine's instance id.
func (e *Engine) ID() string {
	return e.id.String()
}

// Config returns the configuration currently in effect.
func (e *Engine) Config() config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Resolver returns the resolver for f.
func (e *Engine) Resolver(f units.Family) (*resolver.Resolver, bool) {
	fam, ok := e.families[f]
	if !ok {
		return nil, false
	}
	return fam.resolver, true
}

// Size resolves a size request.
func (e *Engine) Size(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (float64, error) {
	return e.families[units.FamilySize].resolver.Calculate(ctx, v, u, d, uc)
}

// Position resolves a position request.
func (e *Engine) Position(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (float64, error) {
	return e.families[units.FamilyPosition].resolver.Calculate(ctx, v, u, d, uc)
}

// Scale resolves a scale request.
func (e *Engine) Scale(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (float64, error) {
	return e.families[units.FamilyScale].resolver.Calculate(ctx, v, u, d, uc)
}

// Resolve resolves a request in family f and reports how it was answered.
func (e *Engine) Resolve(ctx context.Context, f units.Family, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (resolver.Resolution, error) {
	fam, ok := e.families[f]
	if !ok {
		return resolver.Resolution{}, fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
	return fam.resolver.Resolve(ctx, v, u, d, uc)
}

// =============================================================================
// Maintenance
// =============================================================================

// Reload applies a new configuration.
//
// # Description
//
// Declared strategies are swapped, constraints and cache capacity are
// updated, and every cache is cleared. The composer is replaced only when
// its kind changes, so adaptive history survives unrelated edits. The new
// configuration is fully built before anything is applied; on error the
// engine keeps running with the old one. Cache TTL is fixed when the engine
// is built and is not changed by Reload.
//
// # Outputs
//
//   - error: Non-nil if cfg is invalid. The engine is unchanged.
func (e *Engine) Reload(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	type plan struct {
		declared []*strategy.Strategy
		comp     composer.Composer
	}
	plans := make(map[units.Family]plan, len(e.families))
	for f, fam := range e.families {
		declared, err := declaredStrategies(cfg, f, fam.builtins)
		if err != nil {
			return fmt.Errorf("reload %s: %w", f, err)
		}
		p := plan{declared: declared}
		if cfg.Composer != e.cfg.Composer {
			comp, err := e.newComposer(cfg.Composer)
			if err != nil {
				return fmt.Errorf("reload %s: %w", f, err)
			}
			p.comp = comp
		}
		plans[f] = p
	}

	for f, fam := range e.families {
		p := plans[f]
		reg := fam.resolver.Registry()
		for _, id := range fam.declared {
			reg.Unregister(id)
		}
		fam.declared = fam.declared[:0]
		for _, s := range p.declared {
			if err := reg.Register(s); err != nil {
				return fmt.Errorf("reload %s: %w", f, err)
			}
			fam.declared = append(fam.declared, s.ID)
		}
		if p.comp != nil {
			fam.resolver.SetComposer(p.comp)
		}
		if err := fam.resolver.Cache().SetMaxSize(cfg.Cache.MaxSize); err != nil {
			return fmt.Errorf("reload %s: %w", f, err)
		}
		if err := fam.resolver.SetConstraints(cfg.Constraints.For(f)); err != nil {
			return fmt.Errorf("reload %s: %w", f, err)
		}
	}

	e.cfg = cfg
	e.logger.Info("layout engine reloaded",
		slog.String("composer", cfg.Composer),
		slog.Int("declared_strategies", len(cfg.Strategies)))
	return nil
}

// Cleanup removes expired entries from every cache and returns the total.
func (e *Engine) Cleanup() int {
	removed := 0
	for _, f := range units.AllFamilies {
		removed += e.families[f].resolver.Cache().Cleanup()
	}
	return removed
}

// StartJanitors sweeps every cache on cfg.Cache.CleanupInterval until ctx is
// cancelled. The returned channel closes once all janitors have exited; it
// is already closed when the interval is zero.
func (e *Engine) StartJanitors(ctx context.Context) <-chan struct{} {
	interval := e.Config().Cache.CleanupInterval.Std()

	var wg sync.WaitGroup
	for _, f := range units.AllFamilies {
		done := e.families[f].resolver.Cache().StartJanitor(ctx, interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-done
		}()
	}

	all := make(chan struct{})
	go func() {
		wg.Wait()
		close(all)
	}()
	return all
}

// SaveSnapshot writes every family's live cache entries to store, stamped
// with the fingerprint of the configuration in effect.
func (e *Engine) SaveSnapshot(ctx context.Context, store *badger.SnapshotStore) error {
	cfg := e.Config()
	for _, f := range units.AllFamilies {
		fp, err := configFingerprint(cfg, f)
		if err != nil {
			return err
		}
		entries := e.families[f].resolver.Cache().Snapshot()
		if _, err := store.Save(ctx, f, fp, entries); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot restores cache entries saved by SaveSnapshot and returns how
// many were restored.
//
// # Description
//
// Families with no snapshot are skipped. A snapshot saved under different
// constraints, declared strategies or composer holds values this engine
// would not compute; it is deleted from store and nothing is restored for
// that family.
func (e *Engine) LoadSnapshot(ctx context.Context, store *badger.SnapshotStore) (int, error) {
	cfg := e.Config()
	restored := 0
	for _, f := range units.AllFamilies {
		header, entries, err := store.Load(ctx, f)
		if errors.Is(err, badger.ErrNoSnapshot) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("load %s snapshot: %w", f, err)
		}

		fp, err := configFingerprint(cfg, f)
		if err != nil {
			return restored, err
		}
		if header.Fingerprint != fp {
			e.logger.Info("discarding cache snapshot from another configuration",
				slog.String("family", string(f)),
				slog.String("snapshot_id", header.ID.String()),
				slog.Int("stored", len(entries)))
			if err := store.Delete(ctx, f); err != nil {
				return restored, fmt.Errorf("discard %s snapshot: %w", f, err)
			}
			continue
		}

		n := e.families[f].resolver.Cache().Restore(entries)
		restored += n
		e.logger.Debug("cache snapshot restored",
			slog.String("family", string(f)),
			slog.String("snapshot_id", header.ID.String()),
			slog.Int("stored", len(entries)),
			slog.Int("restored", n))
	}
	return restored, nil
}
