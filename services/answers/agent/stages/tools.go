// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/answers/telemetry"
	"github.com/AleutianAI/AleutianAnswers/services/answers/tools"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// ToolExecution is the dispatch stage.
//
// Description:
//
//	Executes every pending tool call in the worker's last message,
//	appending one tool-result message per call before control returns to
//	the worker. Individual tool failures become observable result entries
//	the LLM can adapt to; only a tool-call-budget violation is fatal.
//
// Thread Safety: ToolExecution is safe for concurrent use across runs.
type ToolExecution struct {
	registry *tools.Registry
	executor *tools.Executor
}

// NewToolExecution creates the tool execution stage.
//
// Inputs:
//
//	registry - The tool registry for name dispatch.
//	executor - The executor applying timeouts and panic recovery.
func NewToolExecution(registry *tools.Registry, executor *tools.Executor) *ToolExecution {
	return &ToolExecution{registry: registry, executor: executor}
}

// Name implements agent.Stage.
func (s *ToolExecution) Name() string { return "tools" }

// Execute implements agent.Stage.
//
// Outputs:
//
//	agent.AgentState - Always StateWorker on success.
//	error - agent.ErrToolBudgetExceeded once the run's budget is exhausted.
func (s *ToolExecution) Execute(ctx context.Context, conv *agent.Conversation) (agent.AgentState, error) {
	last, ok := conv.LastMessage()
	if !ok || len(last.ToolCalls) == 0 {
		return agent.StateError, fmt.Errorf("tool stage entered with no pending tool calls")
	}

	for _, call := range last.ToolCalls {
		if err := conv.ConsumeToolCall(); err != nil {
			used, budget := conv.ToolCallUsage()
			slog.Warn("Tool call budget exhausted",
				slog.String("run_id", conv.RunID),
				slog.Int("used", used),
				slog.Int("budget", budget),
			)
			return agent.StateError, err
		}

		result := s.dispatch(ctx, call)
		telemetry.RecordToolInvocation(call.Name, result.Success)

		conv.Append(llm.ChatMessage{
			Role:       "tool",
			Content:    result.OutputText,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}

	return agent.StateWorker, nil
}

// dispatch resolves a single tool call to a result, never an error. An
// unknown name is a reportable dispatch failure the LLM sees on its next
// turn.
func (s *ToolExecution) dispatch(ctx context.Context, call llm.ToolCallResponse) *tools.Result {
	tool, found := s.registry.Get(call.Name)
	if !found {
		slog.Warn("Unknown tool requested", slog.String("tool", call.Name))
		return tools.Failure(fmt.Sprintf("unknown tool %q", call.Name))
	}

	params, err := call.ArgumentsMap()
	if err != nil {
		return tools.Failure(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
	}

	return s.executor.Execute(ctx, tool, params)
}
