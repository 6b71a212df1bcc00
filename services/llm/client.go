// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides provider bindings for large language models.
//
// The package exposes a minimal, provider-agnostic surface: plain chat
// for simple prompts and tool-calling chat for the agent loop.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import "context"

// GenerationParams holds provider-agnostic generation options.
type GenerationParams struct {
	// Temperature controls randomness (0.0-1.0). Nil uses the provider default.
	Temperature *float32 `json:"temperature,omitempty"`

	// TopP is the nucleus sampling parameter. Nil uses the provider default.
	TopP *float32 `json:"top_p,omitempty"`

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stop lists stop sequences.
	Stop []string `json:"stop,omitempty"`

	// ModelOverride selects a model for this request only. Empty uses the
	// model set at client construction time.
	ModelOverride string `json:"model_override,omitempty"`

	// ForceTool, when non-empty, constrains the model to call the named
	// tool exactly once. Used for schema-constrained structured output.
	ForceTool string `json:"force_tool,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LLMClient interface {
	// Chat sends a conversation and returns the assistant's response text.
	Chat(ctx context.Context, messages []ChatMessage, params GenerationParams) (string, error)
}

// ToolCallingClient extends LLMClient with function-calling support.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ToolCallingClient interface {
	LLMClient

	// ChatWithTools sends a conversation along with tool definitions.
	// The model may answer directly or request one or more tool calls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}
