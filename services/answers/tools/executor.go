// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var executorTracer = otel.Tracer("tools.executor")

// MaxOutputBytes limits tool output size before truncation. Oversized
// outputs would blow the LLM context window on the next worker turn.
const MaxOutputBytes = 1 << 16 // 64KB

// ExecutorOptions configures the tool executor.
type ExecutorOptions struct {
	// DefaultTimeout is the per-call execution timeout.
	DefaultTimeout time.Duration

	// MaxOutputBytes limits output size (0 uses MaxOutputBytes).
	MaxOutputBytes int
}

// DefaultExecutorOptions returns sensible defaults.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		DefaultTimeout: 30 * time.Second,
		MaxOutputBytes: MaxOutputBytes,
	}
}

// Executor runs individual tools with timeout, validation, and panic recovery.
//
// Description:
//
//	The executor is the single funnel through which the agent invokes
//	tools. It validates required parameters against the tool definition,
//	applies the per-call timeout, recovers panics into failed results,
//	and truncates oversized output.
//
// Thread Safety: Executor is safe for concurrent use.
type Executor struct {
	opts ExecutorOptions
}

// NewExecutor creates a tool executor.
//
// Inputs:
//
//	opts - Executor options. Zero values fall back to defaults.
//
// Outputs:
//
//	*Executor - The configured executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultExecutorOptions().DefaultTimeout
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = MaxOutputBytes
	}
	return &Executor{opts: opts}
}

// Execute runs a tool with the given parameters.
//
// Description:
//
//	Validates required parameters, applies the timeout from the tool
//	definition (falling back to the executor default), and converts any
//	panic or returned error into a failed Result. The returned Result is
//	never nil; the agent loop can always append it to the conversation.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	tool - The tool to run. Must not be nil.
//	params - Decoded tool arguments.
//
// Outputs:
//
//	*Result - The execution outcome, success or failure.
//
// Thread Safety: This method is safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, tool Tool, params map[string]any) (result *Result) {
	def := tool.Definition()

	ctx, span := executorTracer.Start(ctx, "tools.Executor.Execute",
		trace.WithAttributes(attribute.String("tool", def.Name)),
	)
	defer span.End()

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked",
				slog.String("tool", def.Name),
				slog.Any("panic", r),
			)
			result = Failure(fmt.Sprintf("tool %s panicked: %v", def.Name, r))
			result.Duration = time.Since(start)
		}
	}()

	for _, name := range def.RequiredParams() {
		if _, ok := params[name]; !ok {
			result = Failure(fmt.Sprintf("missing required parameter %q", name))
			result.Duration = time.Since(start)
			return result
		}
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := tool.Execute(ctx, params)
	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("Tool execution failed",
			slog.String("tool", def.Name),
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed),
		)
		result = Failure(err.Error())
		result.Duration = elapsed
		return result
	}
	if res == nil {
		result = Failure(fmt.Sprintf("tool %s returned no result", def.Name))
		result.Duration = elapsed
		return result
	}

	res.Duration = elapsed
	if len(res.OutputText) > e.opts.MaxOutputBytes {
		res.OutputText = res.OutputText[:e.opts.MaxOutputBytes]
		res.Truncated = true
	}

	slog.Debug("Tool executed",
		slog.String("tool", def.Name),
		slog.Bool("success", res.Success),
		slog.Duration("duration", elapsed),
		slog.Bool("truncated", res.Truncated),
	)

	return res
}
