// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "answers",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Chat completion requests by model and status.",
	}, []string{"model", "status"})

	llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "answers",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Latency of chat completion requests.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"model"})

	llmTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "answers",
		Subsystem: "llm",
		Name:      "tokens_per_request",
		Help:      "Provider-reported token usage per chat completion request.",
		Buckets:   prometheus.ExponentialBuckets(8, 2, 12),
	}, []string{"model", "kind"})
)

// recordLLMRequest records one chat completion attempt.
func recordLLMRequest(model, status string, duration time.Duration) {
	llmRequests.WithLabelValues(model, status).Inc()
	llmRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// recordLLMTokens records the provider-reported token usage for one request.
func recordLLMTokens(model string, prompt, completion int) {
	llmTokens.WithLabelValues(model, "prompt").Observe(float64(prompt))
	llmTokens.WithLabelValues(model, "completion").Observe(float64(completion))
}
