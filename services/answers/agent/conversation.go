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
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// Conversation is the mutable record threaded through one run.
//
// Description:
//
//	Holds the message history, task metadata, iteration bookkeeping, and
//	the tool-call budget for a single question. A Conversation is created
//	fresh per run and discarded after the answer is extracted; the only
//	cross-run state in the system is the read-only tool registry.
//
//	Message history is append-only with one exception: the single system
//	prompt slot, which the worker inserts on its first visit and rewrites
//	in place on later visits.
//
// Thread Safety:
//
//	A Conversation is owned by one run, whose stages execute strictly
//	sequentially. The mutex guards state reads from other goroutines
//	(HTTP status handlers, checkpointing).
type Conversation struct {
	mu sync.RWMutex

	// RunID is the run-scoped correlation identifier.
	RunID string `json:"run_id"`

	// TaskID correlates the run with the external grading system. It is
	// opaque to the loop except for the single bypass value.
	TaskID string `json:"task_id,omitempty"`

	// FileName is the optional attachment reference from the question
	// metadata.
	FileName string `json:"file_name,omitempty"`

	// Messages is the role-tagged conversation history.
	Messages []llm.ChatMessage `json:"messages"`

	// IterationCount is the number of worker LLM invocations so far.
	IterationCount int `json:"iteration_count"`

	// MaxIterations is the worker iteration ceiling, fixed at construction.
	MaxIterations int `json:"max_iterations"`

	// ToolCallsUsed is the cumulative tool invocations consumed.
	ToolCallsUsed int `json:"tool_calls_used"`

	// ToolCallBudget is the run-level tool invocation ceiling. Zero means
	// unlimited.
	ToolCallBudget int `json:"tool_call_budget"`

	// Evaluation is the evaluator's structured verdict, set exactly once.
	Evaluation *EvaluatorVerdict `json:"evaluation,omitempty"`

	// CreatedAt is when the run started.
	CreatedAt time.Time `json:"created_at"`

	state AgentState
}

// NewConversation creates a fresh conversation for one run.
//
// Inputs:
//
//	question - The user's question. Becomes the first user message.
//	taskID - Opaque task identifier, may be empty.
//	fileName - Optional attachment reference, may be empty.
//	maxIterations - Worker iteration ceiling.
//	toolCallBudget - Run-level tool call ceiling, 0 for unlimited.
//
// Outputs:
//
//	*Conversation - The conversation in IDLE state with one user message.
func NewConversation(question, taskID, fileName string, maxIterations, toolCallBudget int) *Conversation {
	return &Conversation{
		RunID:          uuid.New().String(),
		TaskID:         taskID,
		FileName:       fileName,
		Messages:       []llm.ChatMessage{{Role: "user", Content: question}},
		MaxIterations:  maxIterations,
		ToolCallBudget: toolCallBudget,
		CreatedAt:      time.Now(),
		state:          StateIdle,
	}
}

// State returns the current state.
func (c *Conversation) State() AgentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState updates the current state. Callers should use the state machine's
// Transition rather than setting states directly.
func (c *Conversation) SetState(s AgentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Append adds a message to the history.
func (c *Conversation) Append(msg llm.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, msg)
}

// LastMessage returns the most recent message.
//
// Outputs:
//
//	llm.ChatMessage - The last message, zero value if history is empty.
//	bool - False if the history is empty.
func (c *Conversation) LastMessage() (llm.ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Messages) == 0 {
		return llm.ChatMessage{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// EnsureSystemPrompt maintains the single system-prompt invariant.
//
// Description:
//
//	If a system message exists anywhere in the history, its content is
//	rewritten in place. Otherwise a system message is prepended. After
//	any number of calls exactly one system entry exists.
//
// Inputs:
//
//	content - The system prompt text.
func (c *Conversation) EnsureSystemPrompt(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.Messages {
		if c.Messages[i].Role == "system" {
			c.Messages[i].Content = content
			return
		}
	}
	c.Messages = append([]llm.ChatMessage{{Role: "system", Content: content}}, c.Messages...)
}

// SystemPromptCount returns the number of system messages in the history.
func (c *Conversation) SystemPromptCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, m := range c.Messages {
		if m.Role == "system" {
			count++
		}
	}
	return count
}

// IncrementIteration adds one worker LLM invocation to the counter.
func (c *Conversation) IncrementIteration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IterationCount++
}

// AtIterationCeiling reports whether the worker must force termination
// instead of invoking the LLM.
func (c *Conversation) AtIterationCeiling() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IterationCount >= c.MaxIterations
}

// ConsumeToolCall counts one tool invocation against the run budget.
//
// Description:
//
//	The budget is a blunt circuit breaker. Once the configured ceiling is
//	exceeded the run aborts; there is no graceful degradation. A zero
//	budget disables the check.
//
// Outputs:
//
//	error - ErrToolBudgetExceeded once the ceiling is crossed.
func (c *Conversation) ConsumeToolCall() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ToolCallsUsed++
	if c.ToolCallBudget > 0 && c.ToolCallsUsed > c.ToolCallBudget {
		return ErrToolBudgetExceeded
	}
	return nil
}

// ToolCallUsage returns the consumed and budgeted tool call counts.
func (c *Conversation) ToolCallUsage() (used, budget int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ToolCallsUsed, c.ToolCallBudget
}

// Snapshot returns a deep copy of the message history.
//
// Description:
//
//	For checkpointing and status reads while the run owns the live slice.
func (c *Conversation) Snapshot() []llm.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.ChatMessage, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// MarshalSnapshot serializes the conversation to JSON under the lock.
//
// Description:
//
//	For checkpoint stores. The serialized form carries the exported
//	fields plus the current state; UnmarshalSnapshot restores it.
func (c *Conversation) MarshalSnapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return json.Marshal(conversationSnapshot{
		RunID:          c.RunID,
		TaskID:         c.TaskID,
		FileName:       c.FileName,
		Messages:       c.Messages,
		IterationCount: c.IterationCount,
		MaxIterations:  c.MaxIterations,
		ToolCallsUsed:  c.ToolCallsUsed,
		ToolCallBudget: c.ToolCallBudget,
		Evaluation:     c.Evaluation,
		CreatedAt:      c.CreatedAt,
		State:          c.state,
	})
}

// UnmarshalSnapshot restores a conversation from its serialized form.
func UnmarshalSnapshot(data []byte) (*Conversation, error) {
	var snap conversationSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &Conversation{
		RunID:          snap.RunID,
		TaskID:         snap.TaskID,
		FileName:       snap.FileName,
		Messages:       snap.Messages,
		IterationCount: snap.IterationCount,
		MaxIterations:  snap.MaxIterations,
		ToolCallsUsed:  snap.ToolCallsUsed,
		ToolCallBudget: snap.ToolCallBudget,
		Evaluation:     snap.Evaluation,
		CreatedAt:      snap.CreatedAt,
		state:          snap.State,
	}, nil
}

type conversationSnapshot struct {
	RunID          string            `json:"run_id"`
	TaskID         string            `json:"task_id,omitempty"`
	FileName       string            `json:"file_name,omitempty"`
	Messages       []llm.ChatMessage `json:"messages"`
	IterationCount int               `json:"iteration_count"`
	MaxIterations  int               `json:"max_iterations"`
	ToolCallsUsed  int               `json:"tool_calls_used"`
	ToolCallBudget int               `json:"tool_call_budget"`
	Evaluation     *EvaluatorVerdict `json:"evaluation,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	State          AgentState        `json:"state"`
}

// SetEvaluation records the evaluator's verdict.
func (c *Conversation) SetEvaluation(v *EvaluatorVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Evaluation = v
}
