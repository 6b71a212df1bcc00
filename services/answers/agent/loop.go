// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianAnswers/services/answers/telemetry"
)

var loopTracer = otel.Tracer("answers.agent")

// SkippedTaskID is the single task identifier the loop bypasses entirely.
// The grading set contains one task (a chess position) this agent cannot
// attempt; runs for it return SkippedAnswer without invoking any stage.
const SkippedTaskID = "cca530fc-4052-43b2-b130-b30968d8aa44"

// SkippedAnswer is the constant answer for the bypass task.
const SkippedAnswer = "Skipped"

// finalAnswerPrefix is the literal the evaluator prepends to its terminal
// message. Answer extraction strips it.
const finalAnswerPrefix = "Evaluator final answer: "

const (
	// DefaultMaxIterations is the worker iteration ceiling when not configured.
	DefaultMaxIterations = 10

	// DefaultToolCallBudget is the run-level tool invocation ceiling when
	// not configured. Mainly guards runaway web search loops.
	DefaultToolCallBudget = 25
)

// Stage executes one state of the control loop.
//
// Implementations mutate the conversation (append messages, bump counters)
// and return the next state. A returned error is fatal to the run.
type Stage interface {
	// Name returns the stage name for logging and metrics.
	Name() string

	// Execute runs the stage against the conversation.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout.
	//   conv - The run's conversation, owned by this run.
	//
	// Outputs:
	//   AgentState - The next state to transition to.
	//   error - Non-nil for unrecoverable failures.
	Execute(ctx context.Context, conv *Conversation) (AgentState, error)
}

// CheckpointStore persists conversation snapshots for resumability.
//
// Checkpointing is best effort: a failed save is logged and the run
// continues. It is not part of the functional contract.
type CheckpointStore interface {
	// Save persists the conversation keyed by its run ID.
	Save(ctx context.Context, conv *Conversation) error

	// Load retrieves a previously saved conversation.
	Load(ctx context.Context, runID string) (*Conversation, error)
}

// Loop orchestrates the worker/tools/evaluator state machine.
//
// Description:
//
//	One Loop serves many runs. Each run gets a fresh Conversation and
//	executes strictly sequentially through the state machine; the only
//	shared state is the read-only stage set and the LLM client's
//	connection pool underneath.
//
// Thread Safety: Loop is safe for concurrent use after construction.
type Loop struct {
	stages         map[AgentState]Stage
	sm             *StateMachine
	maxIterations  int
	toolCallBudget int
	checkpoints    CheckpointStore
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStage registers the stage executed in a given state.
func WithStage(state AgentState, stage Stage) LoopOption {
	return func(l *Loop) {
		l.stages[state] = stage
	}
}

// WithMaxIterations sets the worker iteration ceiling.
func WithMaxIterations(max int) LoopOption {
	return func(l *Loop) {
		if max > 0 {
			l.maxIterations = max
		}
	}
}

// WithToolCallBudget sets the run-level tool invocation ceiling.
// Zero disables the budget.
func WithToolCallBudget(budget int) LoopOption {
	return func(l *Loop) {
		if budget >= 0 {
			l.toolCallBudget = budget
		}
	}
}

// WithCheckpointStore enables best-effort conversation checkpointing.
func WithCheckpointStore(store CheckpointStore) LoopOption {
	return func(l *Loop) {
		l.checkpoints = store
	}
}

// WithStateMachine overrides the transition table. Tests use this to
// observe transitions; production code keeps the default.
func WithStateMachine(sm *StateMachine) LoopOption {
	return func(l *Loop) {
		if sm != nil {
			l.sm = sm
		}
	}
}

// NewLoop creates a control loop.
//
// Description:
//
//	The returned loop needs stages registered for WORKER, TOOLS, and
//	EVALUATOR before Run can complete; a missing stage surfaces as a
//	run-level error, not a panic.
//
// Inputs:
//
//	opts - Functional options.
//
// Outputs:
//
//	*Loop - The configured loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		stages:         make(map[AgentState]Stage),
		sm:             DefaultStateMachine,
		maxIterations:  DefaultMaxIterations,
		toolCallBudget: DefaultToolCallBudget,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run answers one question.
//
// Description:
//
//	Creates a fresh conversation, drives the state machine from WORKER
//	until a terminal state, and extracts the normalized answer from the
//	evaluator's terminal message. The worker's iteration ceiling
//	guarantees termination within maxIterations+1 worker visits.
//
//	The bypass task returns SkippedAnswer without invoking any stage.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	question - The question text. Must be non-empty.
//	taskID - Opaque task identifier, may be empty.
//	fileName - Optional attachment reference, may be empty.
//
// Outputs:
//
//	*RunResult - Always non-nil when error is nil; carries the answer.
//	error - Non-nil for unrecoverable failures (budget violation, stage error).
//
// Thread Safety: This method is safe for concurrent use.
func (l *Loop) Run(ctx context.Context, question, taskID, fileName string) (*RunResult, error) {
	start := time.Now()

	if taskID == SkippedTaskID {
		slog.Info("Bypassing run for skipped task", slog.String("task_id", taskID))
		telemetry.RecordRun(string(OutcomeSkipped), time.Since(start), 0)
		return &RunResult{
			TaskID:   taskID,
			Answer:   SkippedAnswer,
			Outcome:  OutcomeSkipped,
			Duration: time.Since(start),
		}, nil
	}

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	conv := NewConversation(question, taskID, fileName, l.maxIterations, l.toolCallBudget)

	ctx, span := loopTracer.Start(ctx, "agent.Loop.Run",
		trace.WithAttributes(
			attribute.String("run_id", conv.RunID),
			attribute.String("task_id", taskID),
		),
	)
	defer span.End()

	slog.Info("Starting run",
		slog.String("run_id", conv.RunID),
		slog.String("task_id", taskID),
		slog.String("file_name", fileName),
		slog.Int("max_iterations", l.maxIterations),
	)

	if err := l.sm.Transition(conv, StateWorker); err != nil {
		return nil, err
	}

	for !conv.State().IsTerminal() {
		if err := ctx.Err(); err != nil {
			conv.SetState(StateError)
			return l.failedResult(conv, err, start), err
		}

		state := conv.State()
		stage, ok := l.stages[state]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrNoStage, state)
			conv.SetState(StateError)
			return l.failedResult(conv, err, start), err
		}

		stageStart := time.Now()
		next, err := stage.Execute(ctx, conv)
		telemetry.RecordStage(stage.Name(), time.Since(stageStart))

		if err != nil {
			stageErr := &StageError{Stage: stage.Name(), Err: err}
			span.RecordError(stageErr)
			span.SetStatus(codes.Error, stageErr.Error())
			slog.Error("Stage failed",
				slog.String("run_id", conv.RunID),
				slog.String("stage", stage.Name()),
				slog.String("error", err.Error()),
			)
			conv.SetState(StateError)
			return l.failedResult(conv, stageErr, start), stageErr
		}

		if err := l.sm.Transition(conv, next); err != nil {
			conv.SetState(StateError)
			return l.failedResult(conv, err, start), err
		}

		l.checkpoint(ctx, conv)
	}

	answer := l.extractAnswer(conv)
	result := &RunResult{
		RunID:      conv.RunID,
		TaskID:     taskID,
		Answer:     answer,
		Outcome:    OutcomeAnswered,
		Verdict:    conv.Evaluation,
		Iterations: conv.IterationCount,
		ToolCalls:  conv.ToolCallsUsed,
		Duration:   time.Since(start),
	}

	telemetry.RecordRun(string(OutcomeAnswered), result.Duration, result.Iterations)
	slog.Info("Run complete",
		slog.String("run_id", conv.RunID),
		slog.String("answer", answer),
		slog.Int("iterations", conv.IterationCount),
		slog.Int("tool_calls", conv.ToolCallsUsed),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// Answer runs a question and returns only the final answer string.
//
// Outputs:
//
//	string - The normalized answer.
//	error - Non-nil for unrecoverable failures.
func (l *Loop) Answer(ctx context.Context, question, taskID, fileName string) (string, error) {
	result, err := l.Run(ctx, question, taskID, fileName)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// extractAnswer strips the evaluator prefix from the terminal message.
// Content without the prefix is returned unmodified.
func (l *Loop) extractAnswer(conv *Conversation) string {
	last, ok := conv.LastMessage()
	if !ok {
		return ""
	}
	return strings.TrimPrefix(last.Content, finalAnswerPrefix)
}

// checkpoint saves the conversation, best effort.
func (l *Loop) checkpoint(ctx context.Context, conv *Conversation) {
	if l.checkpoints == nil {
		return
	}
	if err := l.checkpoints.Save(ctx, conv); err != nil {
		slog.Warn("Checkpoint save failed",
			slog.String("run_id", conv.RunID),
			slog.String("error", err.Error()),
		)
	}
}

// failedResult builds the result for a failed run and records metrics.
func (l *Loop) failedResult(conv *Conversation, err error, start time.Time) *RunResult {
	telemetry.RecordRun(string(OutcomeFailed), time.Since(start), conv.IterationCount)
	return &RunResult{
		RunID:      conv.RunID,
		TaskID:     conv.TaskID,
		Outcome:    OutcomeFailed,
		Iterations: conv.IterationCount,
		ToolCalls:  conv.ToolCallsUsed,
		Duration:   time.Since(start),
		Error:      err.Error(),
	}
}
