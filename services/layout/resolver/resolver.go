// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver turns a layout request into a concrete number by way of
// the result cache, the strategy registry and a composer.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/registry"
	"github.com/AleutianAI/AleutianLayout/services/layout/strategy"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

var tracer = otel.Tracer("aleutian.layout.resolver")

// ErrStrategyFailed is returned when the only applicable strategy fails.
// It is the one hard failure a resolver surfaces.
var ErrStrategyFailed = errors.New("sole strategy failed")

// Path records how a value was produced.
type Path string

const (
	PathLiteral  Path = "literal"
	PathHit      Path = "hit"
	PathFallback Path = "fallback"
	PathDirect   Path = "direct"
	PathComposed Path = "composed"

	// PathShared marks a value computed by a concurrent caller for the
	// same key while this call waited.
	PathShared Path = "shared"
)

// Resolution is a resolved value with diagnostics.
type Resolution struct {
	Value float64 `json:"value"`
	Path  Path    `json:"path"`

	// StrategyID is set for PathDirect.
	StrategyID string `json:"strategy_id,omitempty"`

	// Candidates is the number of matching strategies on a miss.
	Candidates int `json:"candidates"`

	// Reason explains a fallback.
	Reason string `json:"reason,omitempty"`
}

// Options configures a Resolver.
type Options struct {
	// Logger for fallback warnings. Default: slog.Default().
	Logger *slog.Logger

	// Composer combines multiple candidates.
	// Default: weighted average
	Composer composer.Composer

	// Constraints clamp every returned value.
	Constraints Constraints

	// WarnEvery is the minimum spacing between fallback warnings.
	// Default: 1 second
	WarnEvery time.Duration

	// WarnBurst is the number of warnings allowed back to back.
	// Default: 5
	WarnBurst int
}

// Option is a functional option for configuring a Resolver.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithComposer sets the composer used for multiple candidates.
func WithComposer(c composer.Composer) Option {
	return func(o *Options) {
		if c != nil {
			o.Composer = c
		}
	}
}

// WithConstraints sets the initial constraints. Invalid constraints are
// rejected by New.
func WithConstraints(c Constraints) Option {
	return func(o *Options) {
		o.Constraints = c
	}
}

// WithWarnRate limits fallback warnings to one per interval with the given
// burst.
func WithWarnRate(every time.Duration, burst int) Option {
	return func(o *Options) {
		if every > 0 {
			o.WarnEvery = every
		}
		if burst > 0 {
			o.WarnBurst = burst
		}
	}
}

// Resolver resolves one measurement family.
//
// # Description
//
// A request flows as follows:
//
//  1. A numeric value is clamped and returned. Cache and registry are
//     bypassed.
//  2. The cache is consulted; a hit is returned as stored.
//  3. On a miss the registry yields the candidates. None, or a context the
//     single candidate or the composer rejects, produces the family
//     fallback. One candidate is computed directly. Several are ordered by
//     priority and composed with inverse-rank weights 1/(i+1).
//  4. The result is clamped and cached, fallbacks included.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent misses on one key share a single
// computation. Resolutions hold a read lock for their whole duration, so
// SetConstraints waits for in-flight calls and no value clamped under old
// bounds survives the clear.
type Resolver struct {
	family   units.Family
	registry *registry.Registry
	cache    *cache.Cache
	logger   *slog.Logger

	mu          sync.RWMutex
	composer    composer.Composer
	constraints Constraints

	warnLimiter *rate.Limiter
	suppressed  atomic.Int64
}

// New creates a resolver over a registry and a cache.
//
// # Inputs
//
//   - family: Measurement family; selects the fallback constant.
//   - reg: Strategy registry. Must not be nil.
//   - c: Result cache. Must not be nil.
//
// # Outputs
//
//   - *Resolver: The resolver.
//   - error: Non-nil for an unknown family or invalid constraints.
func New(family units.Family, reg *registry.Registry, c *cache.Cache, opts ...Option) (*Resolver, error) {
	if _, err := units.ParseFamily(string(family)); err != nil {
		return nil, err
	}
	if reg == nil || c == nil {
		return nil, errors.New("resolver requires a registry and a cache")
	}

	options := Options{
		Logger:    slog.Default(),
		WarnEvery: time.Second,
		WarnBurst: 5,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Composer == nil {
		options.Composer = composer.NewWeightedAverage(composer.WithLogger(options.Logger))
	}
	if err := options.Constraints.Validate(); err != nil {
		return nil, err
	}

	return &Resolver{
		family:      family,
		registry:    reg,
		cache:       c,
		logger:      options.Logger.With(slog.String("family", string(family))),
		composer:    options.Composer,
		constraints: options.Constraints,
		warnLimiter: rate.NewLimiter(rate.Every(options.WarnEvery), options.WarnBurst),
	}, nil
}

// Family returns the measurement family.
func (r *Resolver) Family() units.Family { return r.family }

// Registry returns the strategy registry.
func (r *Resolver) Registry() *registry.Registry { return r.registry }

// Cache returns the result cache.
func (r *Resolver) Cache() *cache.Cache { return r.cache }

// Composer returns the active composer.
func (r *Resolver) Composer() composer.Composer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.composer
}

// SetComposer swaps the composer. Cached values are kept.
func (r *Resolver) SetComposer(c composer.Composer) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.composer = c
	r.mu.Unlock()
}

// Constraints returns the active constraints.
func (r *Resolver) Constraints() Constraints {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constraints
}

// SetConstraints replaces the constraints and clears the cache, since cached
// values were clamped under the old bounds.
func (r *Resolver) SetConstraints(c Constraints) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constraints = c
	r.cache.Clear()
	return nil
}

// Calculate resolves a request to a number.
//
// # Outputs
//
//   - float64: The resolved, clamped value.
//   - error: Wraps units.ErrMalformedContext for an unusable context, or
//     ErrStrategyFailed when the only applicable strategy failed. Missing
//     strategies are not errors.
func (r *Resolver) Calculate(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (float64, error) {
	res, err := r.Resolve(ctx, v, u, d, uc)
	return res.Value, err
}

// Resolve is Calculate with diagnostics.
func (r *Resolver) Resolve(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v.IsNumber() {
		return Resolution{Value: r.constraints.Clamp(v.Number), Path: PathLiteral}, nil
	}

	if err := uc.Validate(); err != nil {
		return Resolution{}, err
	}

	// Only the calling goroutine runs its own compute closure, so res and
	// computed need no synchronization.
	var (
		res      Resolution
		computed bool
	)
	value, hit, err := r.cache.GetOrCompute(ctx, v, u, d, uc, func(ctx context.Context) (float64, error) {
		computed = true
		var err error
		res, err = r.traceMiss(ctx, v, u, d, uc)
		return res.Value, err
	})
	switch {
	case err != nil:
		return Resolution{}, err
	case hit:
		return Resolution{Value: value, Path: PathHit}, nil
	case !computed:
		return Resolution{Value: value, Path: PathShared}, nil
	}
	return res, nil
}

// traceMiss wraps miss in a span. Must hold mu for reading.
func (r *Resolver) traceMiss(ctx context.Context, v units.Value, u units.Unit, d units.Dimension, uc units.Context) (Resolution, error) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(
			attribute.String("layout.family", string(r.family)),
			attribute.String("layout.value", v.String()),
			attribute.String("layout.unit", string(u)),
			attribute.String("layout.dimension", string(d)),
		),
	)
	defer span.End()

	res, err := r.miss(ctx, r.composer, r.constraints, v, u, d, uc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Resolution{}, err
	}
	span.SetAttributes(
		attribute.String("layout.path", string(res.Path)),
		attribute.Int("layout.candidates", res.Candidates),
	)
	return res, nil
}

// miss computes a value that was not in the cache. The result is clamped;
// the cache stores it.
func (r *Resolver) miss(
	ctx context.Context,
	comp composer.Composer,
	constraints Constraints,
	v units.Value,
	u units.Unit,
	d units.Dimension,
	uc units.Context,
) (Resolution, error) {
	candidates := r.registry.GetStrategiesFor(v, u, d)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	fallback := func(reason string) Resolution {
		r.warnFallback(ctx, reason, v, u, d)
		return Resolution{
			Value:      constraints.Clamp(r.family.Fallback()),
			Path:       PathFallback,
			Candidates: len(candidates),
			Reason:     reason,
		}
	}

	switch len(candidates) {
	case 0:
		return fallback("no applicable strategy"), nil

	case 1:
		s := candidates[0]
		if !s.ValidateContext(uc) {
			return fallback(fmt.Sprintf("context rejected by %s", s.ID)), nil
		}
		value, err := s.Calculate(v, u, d, uc)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %w", ErrStrategyFailed, err)
		}
		return Resolution{
			Value:      constraints.Clamp(value),
			Path:       PathDirect,
			StrategyID: s.ID,
			Candidates: 1,
		}, nil

	default:
		if !comp.ValidateContext(uc) || !comp.CanCompose(v, u) {
			return fallback("context rejected by composer"), nil
		}
		value, ok := comp.Compose(v, u, d, uc, rankWeighted(candidates))
		if !ok {
			return fallback("no candidate contributed to composition"), nil
		}
		return Resolution{
			Value:      constraints.Clamp(value),
			Path:       PathComposed,
			Candidates: len(candidates),
		}, nil
	}
}

// rankWeighted assigns inverse-rank weights 1/(i+1) in the given order.
func rankWeighted(ordered []*strategy.Strategy) []composer.Candidate {
	out := make([]composer.Candidate, len(ordered))
	for i, s := range ordered {
		out[i] = composer.Candidate{Strategy: s, Weight: 1 / float64(i+1)}
	}
	return out
}

// warnFallback logs a fallback at WARN, throttled. Suppressed warnings are
// counted and reported with the next one emitted.
func (r *Resolver) warnFallback(ctx context.Context, reason string, v units.Value, u units.Unit, d units.Dimension) {
	if !r.warnLimiter.Allow() {
		r.suppressed.Add(1)
		return
	}
	r.logger.WarnContext(ctx, "using fallback value",
		slog.String("reason", reason),
		slog.String("value", v.String()),
		slog.String("unit", string(u)),
		slog.String("dimension", string(d)),
		slog.Float64("fallback", r.family.Fallback()),
		slog.Int64("suppressed", r.suppressed.Swap(0)),
	)
}
