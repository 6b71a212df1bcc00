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

import "encoding/json"

// ToolDef is the generic tool definition used as input to ChatWithTools.
// Follows the OpenAI function calling schema.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function" for function calling.
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	// Name is the function name the model will call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters defines the JSON Schema for function parameters.
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number, array).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`

	// Items defines the element type for array parameters.
	Items *ToolParamDef `json:"items,omitempty"`

	// Default is the default value if not provided.
	Default any `json:"default,omitempty"`
}

// ChatMessage is a conversation message that carries tool call metadata.
//
// Description:
//
//	Regular messages use Role + Content. Tool results include ToolCallID
//	and ToolName. Assistant messages with tool calls include ToolCalls.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is the message role: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (for assistant messages).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links this message back to a specific tool call (for tool result messages).
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the tool name for tool result messages.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCallResponse represents a tool call requested by the model.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap unmarshals the arguments into a generic map.
//
// Outputs:
//   - map[string]any: The decoded arguments. Empty map for nil/empty input.
//   - error: Non-nil if the arguments are not a JSON object.
func (t *ToolCallResponse) ArgumentsMap() (map[string]any, error) {
	out := make(map[string]any)
	if len(t.Arguments) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(t.Arguments, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ArgumentsString returns the arguments as a JSON string.
//
// Description:
//
//	If arguments is already a JSON string value (starts with quote),
//	it returns the unquoted string. Otherwise it returns the raw JSON
//	as-is. Returns "{}" for nil/empty.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}

	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}

	return string(t.Arguments)
}

// ChatWithToolsResult is the outcome of a tool-calling chat request.
type ChatWithToolsResult struct {
	// Content is the assistant's text response. May be empty when the
	// model only requests tool calls.
	Content string `json:"content"`

	// ToolCalls contains the tool invocations the model requested.
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// StopReason is "tool_use" when tool calls are pending, "end" otherwise.
	StopReason string `json:"stop_reason"`
}

// HasToolCalls returns true if the result carries pending tool calls.
func (r *ChatWithToolsResult) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
