// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates layout engine configuration from YAML
// or TOML files with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianLayout/services/layout/cache"
	"github.com/AleutianAI/AleutianLayout/services/layout/calculators"
	"github.com/AleutianAI/AleutianLayout/services/layout/composer"
	"github.com/AleutianAI/AleutianLayout/services/layout/resolver"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid layout config")

// ErrUnsupportedFormat is returned for a config file extension that is
// neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the complete engine configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Cache contains result cache settings, shared by every family.
	Cache CacheConfig `json:"cache" yaml:"cache" toml:"cache"`

	// Composer names the composer used when several strategies apply.
	Composer string `json:"composer" yaml:"composer" toml:"composer" validate:"oneof=weighted_average priority adaptive"`

	// Constraints clamp resolved values per family.
	Constraints ConstraintsConfig `json:"constraints" yaml:"constraints" toml:"constraints"`

	// Strategies declares field lookup strategies.
	Strategies []StrategyConfig `json:"strategies" yaml:"strategies" toml:"strategies" validate:"dive"`

	// Logging contains logger settings.
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`

	// Telemetry contains exporter settings.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" toml:"telemetry"`

	// Storage contains snapshot store settings.
	Storage StorageConfig `json:"storage" yaml:"storage" toml:"storage"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	MaxSize int `json:"max_size" yaml:"max_size" toml:"max_size" validate:"gte=1"`

	// TTL is the default entry lifetime. Zero disables expiry.
	TTL Duration `json:"ttl" yaml:"ttl" toml:"ttl" validate:"gte=0"`

	// CleanupInterval is the janitor period. Zero disables the janitor.
	CleanupInterval Duration `json:"cleanup_interval" yaml:"cleanup_interval" toml:"cleanup_interval" validate:"gte=0"`
}

// ConstraintsConfig holds per-family clamps.
type ConstraintsConfig struct {
	Size     resolver.Constraints `json:"size" yaml:"size" toml:"size"`
	Position resolver.Constraints `json:"position" yaml:"position" toml:"position"`
	Scale    resolver.Constraints `json:"scale" yaml:"scale" toml:"scale"`
}

// For returns the constraints of a family.
func (c ConstraintsConfig) For(f units.Family) resolver.Constraints {
	switch f {
	case units.FamilyPosition:
		return c.Position
	case units.FamilyScale:
		return c.Scale
	default:
		return c.Size
	}
}

// StrategyConfig declares a field lookup strategy:
// result = context[source]*factor + offset.
type StrategyConfig struct {
	ID         string   `json:"id" yaml:"id" toml:"id" validate:"required"`
	Family     string   `json:"family" yaml:"family" toml:"family" validate:"required"`
	Priority   int      `json:"priority" yaml:"priority" toml:"priority"`
	Value      string   `json:"value" yaml:"value" toml:"value" validate:"required"`
	Unit       string   `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit,omitempty"`
	Dimensions []string `json:"dimensions,omitempty" yaml:"dimensions,omitempty" toml:"dimensions,omitempty"`
	Source     string   `json:"source" yaml:"source" toml:"source" validate:"required"`

	// Factor defaults to 1 when omitted.
	Factor *float64 `json:"factor,omitempty" yaml:"factor,omitempty" toml:"factor,omitempty"`
	Offset float64  `json:"offset,omitempty" yaml:"offset,omitempty" toml:"offset,omitempty"`
}

// Spec parses the declaration into a lookup spec.
func (s StrategyConfig) Spec() (calculators.LookupSpec, error) {
	family, err := units.ParseFamily(s.Family)
	if err != nil {
		return calculators.LookupSpec{}, fmt.Errorf("strategy %s: %w", s.ID, err)
	}
	sym, err := units.ParseSymbol(s.Value)
	if err != nil {
		return calculators.LookupSpec{}, fmt.Errorf("strategy %s: %w", s.ID, err)
	}

	spec := calculators.LookupSpec{
		ID:       s.ID,
		Family:   family,
		Priority: s.Priority,
		Value:    sym,
		Source:   strings.ToLower(strings.TrimSpace(s.Source)),
		Factor:   1,
		Offset:   s.Offset,
	}
	if s.Factor != nil {
		spec.Factor = *s.Factor
	}
	if s.Unit != "" {
		if spec.Unit, err = units.ParseUnit(s.Unit); err != nil {
			return calculators.LookupSpec{}, fmt.Errorf("strategy %s: %w", s.ID, err)
		}
	}
	for _, d := range s.Dimensions {
		dim, err := units.ParseDimension(d)
		if err != nil {
			return calculators.LookupSpec{}, fmt.Errorf("strategy %s: %w", s.ID, err)
		}
		spec.Dimensions = append(spec.Dimensions, dim)
	}
	return spec, nil
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	JSON   bool   `json:"json" yaml:"json" toml:"json"`
	LogDir string `json:"log_dir,omitempty" yaml:"log_dir,omitempty" toml:"log_dir,omitempty"`
}

// TelemetryConfig contains OpenTelemetry exporter settings.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name" yaml:"service_name" toml:"service_name" validate:"required"`
	TraceExporter  string `json:"trace_exporter" yaml:"trace_exporter" toml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" toml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty" toml:"otlp_endpoint,omitempty" validate:"required_if=TraceExporter otlp"`
}

// StorageConfig contains snapshot store settings.
type StorageConfig struct {
	// Path is the badger directory. Empty disables snapshots unless
	// InMemory is set.
	Path     string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	InMemory bool   `json:"in_memory" yaml:"in_memory" toml:"in_memory"`
}

// Enabled reports whether a snapshot store is configured.
func (s StorageConfig) Enabled() bool {
	return s.InMemory || s.Path != ""
}

// Default returns the default configuration.
//
// Outputs:
//   - Config: Default configuration with sensible values.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MaxSize:         cache.DefaultMaxSize,
			TTL:             Duration(cache.DefaultTTL),
			CleanupInterval: Duration(time.Minute),
		},
		Composer: string(composer.KindWeightedAverage),
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "aleutian-layout",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a .yaml, .yml or .toml file (optional, can be empty).
//
// Outputs:
//   - Config: Merged, validated configuration.
//   - error: Non-nil if the file is unreadable or invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Decode(filepath.Ext(path), data, cfg)
}

// Decode parses data in the format named by ext (".yaml", ".yml" or
// ".toml") over cfg.
func Decode(ext string, data []byte, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse toml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("LAYOUT_CACHE_MAX_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxSize = i
		}
	}
	if v := os.Getenv("LAYOUT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = Duration(d)
		}
	}
	if v := os.Getenv("LAYOUT_COMPOSER"); v != "" {
		if k, err := composer.ParseKind(v); err == nil {
			cfg.Composer = string(k)
		}
	}
	if v := os.Getenv("LAYOUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LAYOUT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
}
