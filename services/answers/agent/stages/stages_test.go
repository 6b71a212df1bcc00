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
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/answers/tools"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// mockLLM scripts ChatWithTools responses. Calls with a forced tool are
// served from evalResults, everything else from workerResults.
type mockLLM struct {
	workerResults []*llm.ChatWithToolsResult
	evalResults   []*llm.ChatWithToolsResult
	workerCalls   int
	evalCalls     int
	err           error
}

func (m *mockLLM) Chat(ctx context.Context, messages []llm.ChatMessage, params llm.GenerationParams) (string, error) {
	result, err := m.ChatWithTools(ctx, messages, params, nil)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (m *mockLLM) ChatWithTools(_ context.Context, _ []llm.ChatMessage,
	params llm.GenerationParams, _ []llm.ToolDef) (*llm.ChatWithToolsResult, error) {

	if m.err != nil {
		return nil, m.err
	}

	if params.ForceTool != "" {
		idx := m.evalCalls
		m.evalCalls++
		if idx >= len(m.evalResults) {
			return &llm.ChatWithToolsResult{StopReason: "end"}, nil
		}
		return m.evalResults[idx], nil
	}

	idx := m.workerCalls
	m.workerCalls++
	if idx >= len(m.workerResults) {
		return &llm.ChatWithToolsResult{Content: "no more scripted turns", StopReason: "end"}, nil
	}
	return m.workerResults[idx], nil
}

func textTurn(content string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{Content: content, StopReason: "end"}
}

func toolTurn(name, args string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{
		ToolCalls: []llm.ToolCallResponse{
			{ID: "call_1", Name: name, Arguments: json.RawMessage(args)},
		},
		StopReason: "tool_use",
	}
}

func verdictTurn(isNumeric bool, answer string) *llm.ChatWithToolsResult {
	args, _ := json.Marshal(map[string]any{"is_numeric": isNumeric, "final_answer": answer})
	return &llm.ChatWithToolsResult{
		ToolCalls: []llm.ToolCallResponse{
			{ID: "call_1", Name: submitFinalAnswerTool, Arguments: args},
		},
		StopReason: "tool_use",
	}
}

// echoTool records invocations and returns its input back.
type echoTool struct {
	name  string
	calls int
}

func (e *echoTool) Name() string { return e.name }
func (e *echoTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name: e.name,
		Parameters: map[string]tools.ParamDef{
			"query": {Type: tools.ParamTypeString, Required: true},
		},
	}
}
func (e *echoTool) Execute(_ context.Context, params map[string]any) (*tools.Result, error) {
	e.calls++
	q, _ := tools.StringParam(params, "query")
	return &tools.Result{Success: true, OutputText: "echo: " + q}, nil
}

// =============================================================================
// Worker
// =============================================================================

func TestWorker_DirectAnswer(t *testing.T) {
	client := &mockLLM{workerResults: []*llm.ChatWithToolsResult{textTurn("4")}}
	worker := NewWorker(client, tools.NewRegistry())
	conv := agent.NewConversation("What is 2+2?", "", "", 10, 0)

	next, err := worker.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateEvaluator {
		t.Errorf("next = %s, want EVALUATOR", next)
	}
	if conv.IterationCount != 1 {
		t.Errorf("iterations = %d, want 1", conv.IterationCount)
	}
	last, _ := conv.LastMessage()
	if last.Content != "4" {
		t.Errorf("last content = %q, want 4", last.Content)
	}
}

func TestWorker_ToolRequest(t *testing.T) {
	client := &mockLLM{workerResults: []*llm.ChatWithToolsResult{
		toolTurn("wiki_search", `{"query":"Mercedes Sosa"}`),
	}}
	worker := NewWorker(client, tools.NewRegistry())
	conv := agent.NewConversation("q", "", "", 10, 0)

	next, err := worker.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateTools {
		t.Errorf("next = %s, want TOOLS", next)
	}
	last, _ := conv.LastMessage()
	if len(last.ToolCalls) != 1 {
		t.Errorf("tool calls = %d, want 1", len(last.ToolCalls))
	}
}

func TestWorker_IterationCeiling_ForcesTermination(t *testing.T) {
	client := &mockLLM{}
	worker := NewWorker(client, tools.NewRegistry())
	conv := agent.NewConversation("q", "", "", 2, 0)
	conv.IncrementIteration()
	conv.IncrementIteration()

	next, err := worker.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateEvaluator {
		t.Errorf("next = %s, want EVALUATOR", next)
	}
	if client.workerCalls != 0 {
		t.Errorf("LLM calls = %d, want 0 at ceiling", client.workerCalls)
	}
	// The synthetic turn does not count as an iteration.
	if conv.IterationCount != 2 {
		t.Errorf("iterations = %d, want 2", conv.IterationCount)
	}
	last, _ := conv.LastMessage()
	if last.Content != terminationMessage {
		t.Errorf("last content = %q, want termination message", last.Content)
	}
}

func TestWorker_SystemPromptInvariant(t *testing.T) {
	client := &mockLLM{workerResults: []*llm.ChatWithToolsResult{
		textTurn("a"), textTurn("b"), textTurn("c"),
	}}
	worker := NewWorker(client, tools.NewRegistry())
	conv := agent.NewConversation("q", "", "data.xlsx", 10, 0)

	for i := 0; i < 3; i++ {
		if _, err := worker.Execute(context.Background(), conv); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}

	if got := conv.SystemPromptCount(); got != 1 {
		t.Errorf("system prompts = %d, want exactly 1", got)
	}
}

func TestWorker_LLMError(t *testing.T) {
	client := &mockLLM{err: errors.New("connection refused")}
	worker := NewWorker(client, tools.NewRegistry())
	conv := agent.NewConversation("q", "", "", 10, 0)

	_, err := worker.Execute(context.Background(), conv)
	if err == nil {
		t.Fatal("expected error")
	}
	if conv.IterationCount != 0 {
		t.Errorf("iterations = %d, want 0 on LLM failure", conv.IterationCount)
	}
}

// =============================================================================
// Tool Execution
// =============================================================================

func newToolStageEnv(t *testing.T) (*ToolExecution, *echoTool) {
	t.Helper()
	registry := tools.NewRegistry()
	echo := &echoTool{name: "echo"}
	registry.MustRegister(echo)
	return NewToolExecution(registry, tools.NewExecutor(tools.DefaultExecutorOptions())), echo
}

func TestToolExecution_AppendsOneResultPerCall(t *testing.T) {
	stage, echo := newToolStageEnv(t)
	conv := agent.NewConversation("q", "", "", 10, 0)
	conv.Append(llm.ChatMessage{
		Role: "assistant",
		ToolCalls: []llm.ToolCallResponse{
			{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"query":"one"}`)},
			{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"query":"two"}`)},
		},
	})

	before := len(conv.Snapshot())
	next, err := stage.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateWorker {
		t.Errorf("next = %s, want WORKER", next)
	}
	if echo.calls != 2 {
		t.Errorf("tool calls = %d, want 2", echo.calls)
	}

	msgs := conv.Snapshot()
	if len(msgs) != before+2 {
		t.Fatalf("messages grew by %d, want 2", len(msgs)-before)
	}
	if msgs[before].Role != "tool" || msgs[before].ToolCallID != "c1" {
		t.Errorf("first result = %+v, want tool message for c1", msgs[before])
	}
	if msgs[before+1].Content != "echo: two" {
		t.Errorf("second result content = %q", msgs[before+1].Content)
	}
}

func TestToolExecution_UnknownToolIsRecoverable(t *testing.T) {
	stage, _ := newToolStageEnv(t)
	conv := agent.NewConversation("q", "", "", 10, 0)
	conv.Append(llm.ChatMessage{
		Role:      "assistant",
		ToolCalls: []llm.ToolCallResponse{{ID: "c1", Name: "nope", Arguments: json.RawMessage(`{}`)}},
	})

	next, err := stage.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateWorker {
		t.Errorf("next = %s, want WORKER", next)
	}
	last, _ := conv.LastMessage()
	if last.Role != "tool" {
		t.Fatalf("last role = %s, want tool", last.Role)
	}
	if last.Content == "" {
		t.Error("expected failure text in tool result")
	}
}

func TestToolExecution_BudgetViolationIsFatal(t *testing.T) {
	stage, _ := newToolStageEnv(t)
	conv := agent.NewConversation("q", "", "", 10, 1)
	conv.Append(llm.ChatMessage{
		Role: "assistant",
		ToolCalls: []llm.ToolCallResponse{
			{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"query":"a"}`)},
			{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"query":"b"}`)},
		},
	})

	_, err := stage.Execute(context.Background(), conv)
	if !errors.Is(err, agent.ErrToolBudgetExceeded) {
		t.Errorf("expected ErrToolBudgetExceeded, got %v", err)
	}
}

// =============================================================================
// Evaluator
// =============================================================================

func TestEvaluator_ProducesTerminalMessage(t *testing.T) {
	client := &mockLLM{evalResults: []*llm.ChatWithToolsResult{verdictTurn(true, "4")}}
	evaluator := NewEvaluator(client)
	conv := agent.NewConversation("What is 2+2?", "", "", 10, 0)
	conv.Append(llm.ChatMessage{Role: "assistant", Content: "The answer is 4."})

	next, err := evaluator.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateComplete {
		t.Errorf("next = %s, want COMPLETE", next)
	}
	last, _ := conv.LastMessage()
	if last.Content != "Evaluator final answer: 4" {
		t.Errorf("terminal content = %q", last.Content)
	}
	if conv.Evaluation == nil || !conv.Evaluation.IsNumeric || conv.Evaluation.FinalAnswer != "4" {
		t.Errorf("evaluation = %+v", conv.Evaluation)
	}
}

func TestEvaluator_RetriesInvalidOutput(t *testing.T) {
	client := &mockLLM{evalResults: []*llm.ChatWithToolsResult{
		textTurn("not a tool call"),
		verdictTurn(false, "Paris"),
	}}
	evaluator := NewEvaluator(client)
	conv := agent.NewConversation("capital of France?", "", "", 10, 0)
	conv.Append(llm.ChatMessage{Role: "assistant", Content: "Paris"})

	next, err := evaluator.Execute(context.Background(), conv)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if next != agent.StateComplete {
		t.Errorf("next = %s, want COMPLETE", next)
	}
	if client.evalCalls != 2 {
		t.Errorf("eval calls = %d, want 2", client.evalCalls)
	}
}

func TestEvaluator_ExhaustsRetries(t *testing.T) {
	client := &mockLLM{evalResults: []*llm.ChatWithToolsResult{
		textTurn("bad"), textTurn("bad"), textTurn("bad"),
	}}
	evaluator := NewEvaluator(client)
	conv := agent.NewConversation("q", "", "", 10, 0)
	conv.Append(llm.ChatMessage{Role: "assistant", Content: "draft"})

	_, err := evaluator.Execute(context.Background(), conv)
	if !errors.Is(err, agent.ErrEvaluatorOutput) {
		t.Fatalf("expected ErrEvaluatorOutput, got %v", err)
	}
	if client.evalCalls != 1+evaluatorValidationRetries {
		t.Errorf("eval calls = %d, want %d", client.evalCalls, 1+evaluatorValidationRetries)
	}
}

func TestEvaluator_EmptyAnswerFailsValidation(t *testing.T) {
	client := &mockLLM{evalResults: []*llm.ChatWithToolsResult{
		verdictTurn(false, "  "),
		verdictTurn(false, "Paris"),
	}}
	evaluator := NewEvaluator(client)
	conv := agent.NewConversation("q", "", "", 10, 0)
	conv.Append(llm.ChatMessage{Role: "assistant", Content: "Paris"})

	if _, err := evaluator.Execute(context.Background(), conv); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if client.evalCalls != 2 {
		t.Errorf("eval calls = %d, want 2", client.evalCalls)
	}
}

func TestEvaluatorUserPrompt_OmitsToolTurns(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "question"},
		{Role: "assistant", ToolCalls: []llm.ToolCallResponse{{ID: "1", Name: "echo"}}},
		{Role: "tool", Content: "tool output", ToolCallID: "1"},
		{Role: "assistant", Content: "final"},
	}

	prompt := evaluatorUserPrompt(messages, "final")
	if !strings.Contains(prompt, "User: question") {
		t.Error("expected user turn in summary")
	}
	if !strings.Contains(prompt, "Assistant: [Tools use]") {
		t.Error("expected placeholder for tool-use turn")
	}
	if strings.Contains(prompt, "tool output") {
		t.Error("tool-result turns must be omitted from the summary")
	}
	if strings.Contains(prompt, "sys") {
		t.Error("system turn must be omitted from the summary")
	}
}

// =============================================================================
// End to End
// =============================================================================

func newLoopEnv(client *mockLLM, registry *tools.Registry, maxIterations, budget int) *agent.Loop {
	executor := tools.NewExecutor(tools.DefaultExecutorOptions())
	return agent.NewLoop(
		agent.WithStage(agent.StateWorker, NewWorker(client, registry)),
		agent.WithStage(agent.StateTools, NewToolExecution(registry, executor)),
		agent.WithStage(agent.StateEvaluator, NewEvaluator(client)),
		agent.WithMaxIterations(maxIterations),
		agent.WithToolCallBudget(budget),
	)
}

func TestRun_DirectAnswer(t *testing.T) {
	client := &mockLLM{
		workerResults: []*llm.ChatWithToolsResult{textTurn("4")},
		evalResults:   []*llm.ChatWithToolsResult{verdictTurn(true, "4")},
	}
	loop := newLoopEnv(client, tools.NewRegistry(), 10, 25)

	answer, err := loop.Answer(context.Background(), "What is 2+2?", "task-1", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "4" {
		t.Errorf("answer = %q, want 4", answer)
	}
}

func TestRun_ToolDispatchRoundTrip(t *testing.T) {
	registry := tools.NewRegistry()
	echo := &echoTool{name: "get_question_file"}
	registry.MustRegister(echo)

	client := &mockLLM{
		workerResults: []*llm.ChatWithToolsResult{
			toolTurn("get_question_file", `{"query":"003_data.xlsx"}`),
			textTurn("the file says 42"),
		},
		evalResults: []*llm.ChatWithToolsResult{verdictTurn(true, "42")},
	}
	loop := newLoopEnv(client, registry, 10, 25)

	result, err := loop.Run(context.Background(), "what is in the file?", "task-2", "003_data.xlsx")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "42" {
		t.Errorf("answer = %q, want 42", result.Answer)
	}
	if echo.calls != 1 {
		t.Errorf("tool invocations = %d, want 1", echo.calls)
	}
	// One iteration per worker LLM visit, not per tool call.
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if result.ToolCalls != 1 {
		t.Errorf("tool calls = %d, want 1", result.ToolCalls)
	}
}

func TestRun_IterationCeilingStillAnswers(t *testing.T) {
	registry := tools.NewRegistry()
	echo := &echoTool{name: "wiki_search"}
	registry.MustRegister(echo)

	// The worker keeps asking for tools forever; the ceiling must force
	// the run into the evaluator, which still returns a non-empty answer.
	endless := make([]*llm.ChatWithToolsResult, 8)
	for i := range endless {
		endless[i] = toolTurn("wiki_search", `{"query":"again"}`)
	}

	client := &mockLLM{
		workerResults: endless,
		evalResults:   []*llm.ChatWithToolsResult{verdictTurn(false, "best effort")},
	}
	loop := newLoopEnv(client, registry, 3, 100)

	result, err := loop.Run(context.Background(), "endless question", "", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer == "" {
		t.Error("expected a non-empty answer after forced termination")
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want ceiling of 3", result.Iterations)
	}
	if client.workerCalls != 3 {
		t.Errorf("worker LLM calls = %d, want 3", client.workerCalls)
	}
}

func TestRun_ToolBudgetExceededFailsRun(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(&echoTool{name: "wiki_search"})

	endless := make([]*llm.ChatWithToolsResult, 8)
	for i := range endless {
		endless[i] = toolTurn("wiki_search", `{"query":"again"}`)
	}

	client := &mockLLM{workerResults: endless}
	loop := newLoopEnv(client, registry, 100, 2)

	_, err := loop.Run(context.Background(), "q", "", "")
	if !errors.Is(err, agent.ErrToolBudgetExceeded) {
		t.Errorf("expected ErrToolBudgetExceeded, got %v", err)
	}
}
