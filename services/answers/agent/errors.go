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
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates an attempted state transition that the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEmptyQuestion indicates a run was started with an empty question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrToolBudgetExceeded indicates the cumulative tool-call budget for a
	// run was exhausted. This is fatal to the run, not a recoverable tool
	// failure.
	ErrToolBudgetExceeded = errors.New("tool call budget exceeded")

	// ErrNoStage indicates the loop reached a state with no registered stage.
	ErrNoStage = errors.New("no stage registered for state")

	// ErrEvaluatorOutput indicates the evaluator could not obtain a valid
	// structured verdict within its retry budget.
	ErrEvaluatorOutput = errors.New("evaluator produced no valid output")
)

// StageError wraps a failure from a named stage so the loop can report
// which stage killed the run.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
