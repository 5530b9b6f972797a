// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

const sampleYAML = `
cache:
  max_size: 64
  ttl: 30s
  cleanup_interval: 5s
composer: adaptive
constraints:
  size:
    min: 0
    max: 4096
strategies:
  - id: half-scene
    family: size
    priority: 1
    value: fill
    unit: scene_width
    dimensions: [width]
    source: scene.width
    factor: 0.5
  - id: gutter
    family: position
    value: left
    source: parent.x
    offset: 16
logging:
  level: debug
`

const sampleTOML = `
composer = "priority"

[cache]
max_size = 10
ttl = "1m"
cleanup_interval = "0s"

[constraints.scale]
max = 4.0

[[strategies]]
id = "vp"
family = "scale"
value = "VIEWPORT_FIT"
source = "viewport.width"
factor = 0.001
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "layout.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Cache.MaxSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, 5*time.Second, cfg.Cache.CleanupInterval.Std())
	assert.Equal(t, "adaptive", cfg.Composer)
	require.NotNil(t, cfg.Constraints.Size.Max)
	assert.Equal(t, 4096.0, *cfg.Constraints.Size.Max)
	assert.Nil(t, cfg.Constraints.Position.Min)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset sections keep defaults.
	assert.Equal(t, "aleutian-layout", cfg.Telemetry.ServiceName)

	sizes := cfg.LookupSpecs(units.FamilySize)
	require.Len(t, sizes, 1)
	assert.Equal(t, units.SymbolFill, sizes[0].Value)
	assert.Equal(t, units.UnitSceneWidth, sizes[0].Unit)
	assert.Equal(t, []units.Dimension{units.DimensionWidth}, sizes[0].Dimensions)
	assert.Equal(t, 0.5, sizes[0].Factor)

	positions := cfg.LookupSpecs(units.FamilyPosition)
	require.Len(t, positions, 1)
	assert.Equal(t, 1.0, positions[0].Factor, "factor defaults to 1")
	assert.Equal(t, 16.0, positions[0].Offset)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "layout.toml", sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "priority", cfg.Composer)
	assert.Equal(t, 10, cfg.Cache.MaxSize)
	assert.Equal(t, time.Minute, cfg.Cache.TTL.Std())
	assert.Zero(t, cfg.Cache.CleanupInterval.Std())
	require.NotNil(t, cfg.Constraints.Scale.Max)
	assert.Equal(t, 4.0, *cfg.Constraints.Scale.Max)
	assert.Len(t, cfg.LookupSpecs(units.FamilyScale), 1)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown composer", "a.yaml", "composer: median\n"},
		{"zero cache", "a.yaml", "cache:\n  max_size: 0\n"},
		{"min above max", "a.yaml", "constraints:\n  size:\n    min: 10\n    max: 1\n"},
		{"bad duration", "a.yaml", "cache:\n  ttl: soon\n"},
		{"unknown symbol", "a.yaml", "strategies:\n  - {id: x, family: size, value: huge, source: scene.width}\n"},
		{"unknown field", "a.yaml", "strategies:\n  - {id: x, family: size, value: fill, source: scene.depth}\n"},
		{"missing id", "a.yaml", "strategies:\n  - {family: size, value: fill, source: scene.width}\n"},
		{"duplicate id", "a.yaml", "strategies:\n  - {id: x, family: size, value: fill, source: scene.width}\n  - {id: x, family: size, value: auto, source: content.width}\n"},
		{"otlp without endpoint", "a.yaml", "telemetry:\n  service_name: s\n  trace_exporter: otlp\n  metric_exporter: none\n"},
		{"unsupported format", "a.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidWrapsSentinel(t *testing.T) {
	_, err := Load(writeFile(t, "a.yaml", "composer: median\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "a.ini", ""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LAYOUT_CACHE_MAX_SIZE", "7")
	t.Setenv("LAYOUT_CACHE_TTL", "2s")
	t.Setenv("LAYOUT_COMPOSER", "Weighted-Average")
	t.Setenv("LAYOUT_LOG_LEVEL", "WARN")

	cfg, err := Load(writeFile(t, "layout.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cache.MaxSize)
	assert.Equal(t, 2*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, "weighted_average", cfg.Composer)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "layout.yaml", "composer: priority\n")

	var (
		mu       sync.Mutex
		received []Config
	)
	w, err := NewWatcher(path, func(cfg Config) {
		mu.Lock()
		received = append(received, cfg)
		mu.Unlock()
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// An invalid write is ignored, a valid one is delivered.
	require.NoError(t, os.WriteFile(path, []byte("composer: median\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("composer: adaptive\n"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0 && received[len(received)-1].Composer == "adaptive"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, cfg := range received {
		assert.NotEqual(t, "median", cfg.Composer)
	}
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoError(t, w.Close())
}
