// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stages provides the worker, tool execution, and evaluator stages
// wired into the agent control loop.
package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/answers/tools"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// terminationMessage is the synthetic assistant turn appended when the
// iteration ceiling is reached. It carries no tool calls, so the router
// sends the run to the evaluator.
const terminationMessage = "I've reached my iteration limit. Let me provide my best answer " +
	"based on the information I've gathered so far."

// Worker is the reasoning stage.
//
// Description:
//
//	Maintains the single system-prompt invariant, enforces the iteration
//	ceiling before every LLM call, and otherwise invokes the LLM with the
//	full history and the registry's tool descriptions. The iteration
//	counter increments exactly once per LLM invocation; the forced
//	termination path does not count.
//
// Thread Safety: Worker is safe for concurrent use across runs.
type Worker struct {
	client   llm.ToolCallingClient
	registry *tools.Registry
}

// NewWorker creates the worker stage.
//
// Inputs:
//
//	client - The tool-calling LLM binding.
//	registry - The tool registry whose definitions the LLM selects from.
func NewWorker(client llm.ToolCallingClient, registry *tools.Registry) *Worker {
	return &Worker{client: client, registry: registry}
}

// Name implements agent.Stage.
func (w *Worker) Name() string { return "worker" }

// Execute implements agent.Stage.
//
// Outputs:
//
//	agent.AgentState - StateTools if the LLM requested tools, else StateEvaluator.
//	error - Non-nil if the LLM call fails.
func (w *Worker) Execute(ctx context.Context, conv *agent.Conversation) (agent.AgentState, error) {
	conv.EnsureSystemPrompt(workerSystemPrompt(conv.FileName))

	// The ceiling check runs before any LLM call so total cost is bounded
	// deterministically. The synthetic turn does not count as an iteration.
	if conv.AtIterationCeiling() {
		slog.Info("Iteration ceiling reached, forcing termination",
			slog.String("run_id", conv.RunID),
			slog.Int("iterations", conv.IterationCount),
		)
		msg := llm.ChatMessage{Role: "assistant", Content: terminationMessage}
		conv.Append(msg)
		return agent.Route(msg), nil
	}

	result, err := w.client.ChatWithTools(ctx, conv.Snapshot(), llm.GenerationParams{}, w.registry.LLMToolDefs())
	if err != nil {
		return agent.StateError, fmt.Errorf("worker LLM call: %w", err)
	}

	msg := llm.ChatMessage{
		Role:      "assistant",
		Content:   result.Content,
		ToolCalls: result.ToolCalls,
	}
	conv.Append(msg)
	conv.IncrementIteration()

	slog.Debug("Worker turn complete",
		slog.String("run_id", conv.RunID),
		slog.Int("iteration", conv.IterationCount),
		slog.Int("tool_calls", len(result.ToolCalls)),
	)

	return agent.Route(msg), nil
}

// workerSystemPrompt renders the worker's operating instructions.
//
// Description:
//
//	The file-handling rules are the load-bearing part: the LLM must
//	resolve the question's attachment through get_question_file and then
//	use only the returned local path, never the attachment name from the
//	prompt. This is a correctness rule enforced by instruction.
func workerSystemPrompt(fileName string) string {
	return fmt.Sprintf(`You are a helpful assistant that can use tools to complete tasks and deliver a message to an evaluator.
If the tool is not available, you can try to find the information online. You can also use your own knowledge to answer the question.
You need to provide a step-by-step explanation of how you arrived at the answer.
If you've finished, reply with the final answer, and don't ask a question; simply reply with the answer to the evaluator.

If a file is needed given by the Human Message, you must follow these steps:
1. First, call the get_question_file tool function using the following file_name: '%s'
2. This will return a file_path. You must use this exact file_path for all subsequent tool calls that require access to the file (e.g., audio transcription, file parsing, etc.)
3. Never use the filename or file path mentioned by the user in their prompt. Only use the file_path returned by the get_question_file tool.
4. If you mistakenly use the user's filename instead of the file_path from the tool, your task will fail.

Important: Always explain the steps you are taking. For example, mention that you first retrieved the file path using the correct file_name, and then processed it using the appropriate tool.

Your goal is to return only the final answer, after completing all required steps correctly.`, fileName)
}
