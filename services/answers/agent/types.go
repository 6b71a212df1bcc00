// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the bounded question-answering control loop.
//
// A run alternates between a worker stage that reasons with the LLM and may
// request tools, a tool execution stage that dispatches those requests, and
// an evaluator stage that normalizes the worker's free-form answer into a
// canonical short answer. The loop is an explicit state machine with a
// termination guarantee: the worker enforces an iteration ceiling before
// every LLM call, so every run reaches the evaluator within a bounded number
// of transitions.
package agent

import (
	"time"
)

// AgentState represents the current state of a run in the state machine.
type AgentState string

const (
	// StateIdle is the initial state before a run starts.
	StateIdle AgentState = "IDLE"

	// StateWorker is the reasoning state. The worker invokes the LLM with
	// the conversation and tool descriptions.
	StateWorker AgentState = "WORKER"

	// StateTools is the tool execution state. Pending tool calls from the
	// worker's last message are dispatched and their results appended.
	StateTools AgentState = "TOOLS"

	// StateEvaluator is the normalization state. A second LLM call coerces
	// the worker's answer into the canonical short form.
	StateEvaluator AgentState = "EVALUATOR"

	// StateComplete is the successful terminal state.
	StateComplete AgentState = "COMPLETE"

	// StateError is the failure terminal state.
	StateError AgentState = "ERROR"
)

// AllStates returns all defined agent states.
func AllStates() []AgentState {
	return []AgentState{
		StateIdle,
		StateWorker,
		StateTools,
		StateEvaluator,
		StateComplete,
		StateError,
	}
}

// String returns the string representation of the state.
func (s AgentState) String() string {
	return string(s)
}

// IsTerminal returns true if the state is a terminal state.
func (s AgentState) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

// IsValid returns true if the state is a recognized state.
func (s AgentState) IsValid() bool {
	switch s {
	case StateIdle, StateWorker, StateTools, StateEvaluator, StateComplete, StateError:
		return true
	}
	return false
}

// EvaluatorVerdict is the structured result the evaluator stage produces.
//
// Description:
//
//	is_numeric records whether the normalized answer is a number rather
//	than words. It is informational metadata only; nothing downstream
//	branches on it. final_answer is the canonical short answer.
type EvaluatorVerdict struct {
	IsNumeric   bool   `json:"is_numeric"`
	FinalAnswer string `json:"final_answer"`
}

// RunOutcome classifies how a run ended.
type RunOutcome string

const (
	// OutcomeAnswered means the evaluator produced a normalized answer.
	OutcomeAnswered RunOutcome = "answered"

	// OutcomeSkipped means the run matched the bypass task and returned
	// the constant answer without invoking any stage.
	OutcomeSkipped RunOutcome = "skipped"

	// OutcomeFailed means the run terminated with an unrecoverable error.
	OutcomeFailed RunOutcome = "failed"
)

// RunResult contains the outcome of a completed run.
type RunResult struct {
	// RunID is the run-scoped correlation identifier.
	RunID string `json:"run_id"`

	// TaskID is the caller-supplied task identifier.
	TaskID string `json:"task_id,omitempty"`

	// Answer is the final answer string. Always set unless the run failed.
	Answer string `json:"answer"`

	// Outcome classifies how the run ended.
	Outcome RunOutcome `json:"outcome"`

	// Verdict is the evaluator's structured output, nil for skipped or
	// failed runs.
	Verdict *EvaluatorVerdict `json:"verdict,omitempty"`

	// Iterations is the number of worker LLM invocations consumed.
	Iterations int `json:"iterations"`

	// ToolCalls is the number of tool invocations consumed.
	ToolCalls int `json:"tool_calls"`

	// Duration is the total wall-clock time of the run.
	Duration time.Duration `json:"duration"`

	// Error is the failure message for failed runs.
	Error string `json:"error,omitempty"`
}
