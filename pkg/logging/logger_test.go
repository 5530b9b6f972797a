// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newBuffered(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"Warning", LevelWarn},
		{"warn", LevelWarn},
		{" error ", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestNew_LevelFiltering(t *testing.T) {
	l, buf := newBuffered(t, Config{Level: LevelWarn})
	l.Slog().Info("hidden")
	l.Slog().Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, LevelWarn, l.Level())
}

func TestNew_JSONWithService(t *testing.T) {
	l, buf := newBuffered(t, Config{JSON: true, Service: "layout-test"})
	l.Slog().Info("resolved", "value", 640.0)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "resolved", rec["msg"])
	assert.Equal(t, "layout-test", rec["service"])
	assert.Equal(t, 640.0, rec["value"])
}

func TestNew_Quiet(t *testing.T) {
	l, buf := newBuffered(t, Config{Quiet: true})
	l.Slog().Error("nobody hears this")
	assert.Empty(t, buf.String())
}

func TestNew_LogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, buf := newBuffered(t, Config{LogDir: dir, Service: "layout-test"})
	l.Slog().Info("to both")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	assert.Contains(t, buf.String(), "to both")

	matches, err := filepath.Glob(filepath.Join(dir, "layout-test_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
}

func TestNew_LogDirFailureStillLogs(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	var buf bytes.Buffer
	l, err := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	assert.Error(t, err)
	require.NotNil(t, l)
	l.Slog().Info("still here")
	assert.Contains(t, buf.String(), "still here")
}

func TestTraceHandler_AddsSpanIDs(t *testing.T) {
	l, buf := newBuffered(t, Config{JSON: true})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.Slog().InfoContext(ctx, "with span")
	l.Slog().InfoContext(context.Background(), "without span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, lines[0], `"span_id":"00f067aa0ba902b7"`)
	assert.NotContains(t, lines[1], "trace_id")
}

func TestLogger_With(t *testing.T) {
	l, buf := newBuffered(t, Config{})
	child := l.With("family", "size")
	child.Slog().Info("child")
	assert.Contains(t, buf.String(), "family=size")
	assert.NoError(t, child.Close())
}

func TestMultiHandler_FansOut(t *testing.T) {
	dir := t.TempDir()
	l, buf := newBuffered(t, Config{LogDir: dir, Level: LevelDebug})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Slog().Debug("concurrent", "i", i)
		}(i)
	}
	wg.Wait()
	require.NoError(t, l.Close())
	assert.Equal(t, 8, strings.Count(buf.String(), "concurrent"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".aleutian"), expandPath("~/.aleutian"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}
