// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package composer

import (
	"sync"
	"time"
)

// PerformanceWindow is the number of recent executions kept per composer.
const PerformanceWindow = 100

// PerformanceMetrics summarizes recent composer executions.
type PerformanceMetrics struct {
	// AverageExecutionTime is the mean duration over the recent window.
	AverageExecutionTime time.Duration `json:"average_execution_time"`

	// TotalExecutions counts every execution since creation.
	TotalExecutions int64 `json:"total_executions"`

	// SuccessRate is the share of windowed executions that produced a value.
	SuccessRate float64 `json:"success_rate"`

	// LastExecutionTime is the duration of the most recent execution.
	LastExecutionTime time.Duration `json:"last_execution_time"`
}

type execution struct {
	duration time.Duration
	success  bool
}

// tracker is a fixed-size ring buffer of executions.
//
// Thread Safety: safe for concurrent use.
type tracker struct {
	mu    sync.Mutex
	ring  [PerformanceWindow]execution
	next  int
	count int
	total int64
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) record(d time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next] = execution{duration: d, success: success}
	t.next = (t.next + 1) % PerformanceWindow
	if t.count < PerformanceWindow {
		t.count++
	}
	t.total++
}

func (t *tracker) metrics() PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := PerformanceMetrics{TotalExecutions: t.total}
	if t.count == 0 {
		return m
	}

	var sum time.Duration
	successes := 0
	for i := 0; i < t.count; i++ {
		e := t.ring[i]
		sum += e.duration
		if e.success {
			successes++
		}
	}
	last := (t.next - 1 + PerformanceWindow) % PerformanceWindow

	m.AverageExecutionTime = sum / time.Duration(t.count)
	m.SuccessRate = float64(successes) / float64(t.count)
	m.LastExecutionTime = t.ring[last].duration
	return m
}
