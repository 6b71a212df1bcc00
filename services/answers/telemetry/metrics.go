// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes Prometheus metrics for the answering service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "answers",
		Name:      "runs_total",
		Help:      "Completed agent runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "answers",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of agent runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "answers",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual stage executions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage"})

	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "answers",
		Name:      "tool_invocations_total",
		Help:      "Tool invocations by tool name and status.",
	}, []string{"tool", "status"})

	iterationsPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "answers",
		Name:      "iterations_per_run",
		Help:      "Worker LLM invocations consumed per run.",
		Buckets:   prometheus.LinearBuckets(1, 1, 12),
	})
)

// RecordRun records a completed run.
func RecordRun(outcome string, duration time.Duration, iterations int) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	iterationsPerRun.Observe(float64(iterations))
}

// RecordStage records one stage execution.
func RecordStage(stage string, duration time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordToolInvocation records one tool dispatch.
func RecordToolInvocation(tool string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	toolInvocations.WithLabelValues(tool, status).Inc()
}
