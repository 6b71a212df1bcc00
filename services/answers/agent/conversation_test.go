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
	"testing"

	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

func TestNewConversation(t *testing.T) {
	conv := NewConversation("What is 2+2?", "task-1", "data.xlsx", 10, 25)

	if conv.RunID == "" {
		t.Error("expected a run ID")
	}
	if conv.State() != StateIdle {
		t.Errorf("state = %s, want IDLE", conv.State())
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[0].Content != "What is 2+2?" {
		t.Errorf("unexpected first message: %+v", conv.Messages[0])
	}
	if conv.IterationCount != 0 {
		t.Errorf("iteration count = %d, want 0", conv.IterationCount)
	}
}

func TestConversation_EnsureSystemPrompt_InsertsOnce(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 0)

	conv.EnsureSystemPrompt("prompt v1")
	if conv.SystemPromptCount() != 1 {
		t.Fatalf("system prompts = %d, want 1", conv.SystemPromptCount())
	}
	if conv.Messages[0].Role != "system" {
		t.Errorf("expected system message first, got %s", conv.Messages[0].Role)
	}
}

func TestConversation_EnsureSystemPrompt_RewritesInPlace(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 0)

	// Any number of worker visits must leave exactly one system entry.
	for i := 0; i < 5; i++ {
		conv.EnsureSystemPrompt("prompt v2")
		conv.Append(llm.ChatMessage{Role: "assistant", Content: "turn"})
	}

	if conv.SystemPromptCount() != 1 {
		t.Errorf("system prompts = %d, want 1", conv.SystemPromptCount())
	}
	if conv.Messages[0].Content != "prompt v2" {
		t.Errorf("system content = %q, want rewritten prompt", conv.Messages[0].Content)
	}
}

func TestConversation_AtIterationCeiling(t *testing.T) {
	conv := NewConversation("q", "", "", 2, 0)

	if conv.AtIterationCeiling() {
		t.Error("fresh conversation should not be at ceiling")
	}
	conv.IncrementIteration()
	conv.IncrementIteration()
	if !conv.AtIterationCeiling() {
		t.Error("expected ceiling after max iterations")
	}
}

func TestConversation_ConsumeToolCall_Budget(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 2)

	if err := conv.ConsumeToolCall(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := conv.ConsumeToolCall(); err != nil {
		t.Fatalf("second call: %v", err)
	}
	err := conv.ConsumeToolCall()
	if !errors.Is(err, ErrToolBudgetExceeded) {
		t.Errorf("expected ErrToolBudgetExceeded, got %v", err)
	}
}

func TestConversation_ToolCallUsage(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 3)

	used, budget := conv.ToolCallUsage()
	if used != 0 || budget != 3 {
		t.Errorf("usage = (%d, %d), want (0, 3)", used, budget)
	}

	conv.ConsumeToolCall()
	conv.ConsumeToolCall()
	used, budget = conv.ToolCallUsage()
	if used != 2 || budget != 3 {
		t.Errorf("usage = (%d, %d), want (2, 3)", used, budget)
	}
}

func TestConversation_ConsumeToolCall_ZeroBudgetUnlimited(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 0)

	for i := 0; i < 100; i++ {
		if err := conv.ConsumeToolCall(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestConversation_Snapshot_IsACopy(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 0)

	snap := conv.Snapshot()
	snap[0].Content = "mutated"

	if conv.Messages[0].Content != "q" {
		t.Error("snapshot mutation leaked into conversation")
	}
}

func TestConversation_LastMessage(t *testing.T) {
	conv := NewConversation("q", "", "", 10, 0)

	last, ok := conv.LastMessage()
	if !ok || last.Content != "q" {
		t.Errorf("last = %+v ok=%v, want user question", last, ok)
	}

	conv.Append(llm.ChatMessage{Role: "assistant", Content: "a"})
	last, _ = conv.LastMessage()
	if last.Content != "a" {
		t.Errorf("last content = %q, want a", last.Content)
	}
}
