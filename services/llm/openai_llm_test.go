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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sashabaranov/go-openai"
)

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "openai:") {
		t.Errorf("error should include 'openai:' prefix, got: %s", err.Error())
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
	}
}

func TestOpenAIClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o-mini")
		}

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{
					Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "4"},
					FinishReason: openai.FinishReasonStop,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	result, err := client.Chat(context.Background(), []ChatMessage{
		{Role: "user", Content: "What is 2+2?"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "4" {
		t.Errorf("result = %q, want %q", result, "4")
	}
}

func TestOpenAIClient_ChatWithTools_ToolCallRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Tools) != 1 {
			t.Errorf("tools = %d, want 1", len(req.Tools))
		}
		if req.Tools[0].Function.Name != "get_question_file" {
			t.Errorf("tool name = %q, want get_question_file", req.Tools[0].Function.Name)
		}

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role: "assistant",
						ToolCalls: []openai.ToolCall{
							{
								ID:   "call_1",
								Type: openai.ToolTypeFunction,
								Function: openai.FunctionCall{
									Name:      "get_question_file",
									Arguments: `{"file_name":"data.xlsx"}`,
								},
							},
						},
					},
					FinishReason: openai.FinishReasonToolCalls,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	tools := []ToolDef{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        "get_question_file",
				Description: "Fetch a task file",
				Parameters: ToolParameters{
					Type: "object",
					Properties: map[string]ToolParamDef{
						"file_name": {Type: "string"},
					},
					Required: []string{"file_name"},
				},
			},
		},
	}

	result, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: "user", Content: "Open the file"},
	}, GenerationParams{}, tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StopReason != "tool_use" {
		t.Errorf("stop reason = %q, want tool_use", result.StopReason)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(result.ToolCalls))
	}
	args, err := result.ToolCalls[0].ArgumentsMap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["file_name"] != "data.xlsx" {
		t.Errorf("file_name = %v, want data.xlsx", args["file_name"])
	}
}

func TestOpenAIClient_ChatWithTools_ForceTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		choice, ok := raw["tool_choice"].(map[string]any)
		if !ok {
			t.Error("expected tool_choice in request")
		} else {
			fn, _ := choice["function"].(map[string]any)
			if fn["name"] != "submit_final_answer" {
				t.Errorf("tool_choice name = %v, want submit_final_answer", fn["name"])
			}
		}

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role: "assistant",
						ToolCalls: []openai.ToolCall{
							{
								ID:   "call_1",
								Type: openai.ToolTypeFunction,
								Function: openai.FunctionCall{
									Name:      "submit_final_answer",
									Arguments: `{"is_numeric":true,"final_answer":"4"}`,
								},
							},
						},
					},
					FinishReason: openai.FinishReasonToolCalls,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	result, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: "user", Content: "Normalize the answer"},
	}, GenerationParams{ForceTool: "submit_final_answer"}, []ToolDef{
		{Type: "function", Function: ToolFunction{Name: "submit_final_answer"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(result.ToolCalls))
	}
	if result.ToolCalls[0].Name != "submit_final_answer" {
		t.Errorf("tool = %q, want submit_final_answer", result.ToolCalls[0].Name)
	}
}

func TestOpenAIClient_ChatWithTools_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	errorsBefore := testutil.ToFloat64(llmRequests.WithLabelValues("gpt-4o-mini", "error"))

	_, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, GenerationParams{}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status code, got: %v", err)
	}

	errorsAfter := testutil.ToFloat64(llmRequests.WithLabelValues("gpt-4o-mini", "error"))
	if errorsAfter-errorsBefore != 1 {
		t.Errorf("error request counter delta = %v, want 1", errorsAfter-errorsBefore)
	}
}

func TestOpenAIClient_ChatWithTools_RecordsRequestMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{
					Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "4"},
					FinishReason: openai.FinishReasonStop,
				},
			},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	okBefore := testutil.ToFloat64(llmRequests.WithLabelValues("gpt-4o-mini", "ok"))

	_, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: "user", Content: "What is 2+2?"},
	}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	okAfter := testutil.ToFloat64(llmRequests.WithLabelValues("gpt-4o-mini", "ok"))
	if okAfter-okBefore != 1 {
		t.Errorf("ok request counter delta = %v, want 1", okAfter-okBefore)
	}

	// One token series per usage kind for the model.
	if got := testutil.CollectAndCount(llmTokens); got < 2 {
		t.Errorf("token series = %d, want at least prompt and completion", got)
	}
}

func TestToolCallResponse_ArgumentsString(t *testing.T) {
	tests := []struct {
		name string
		args json.RawMessage
		want string
	}{
		{"empty", nil, "{}"},
		{"object", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"quoted string", json.RawMessage(`"{\"a\":1}"`), `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ToolCallResponse{Arguments: tt.args}
			if got := tc.ArgumentsString(); got != tt.want {
				t.Errorf("ArgumentsString() = %q, want %q", got, tt.want)
			}
		})
	}
}
