// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the tool registry and execution framework for the agent.
//
// Tools are the agent's only mechanism for reaching external systems: the
// scoring service's file store, web search, transcription, and local document
// analysis. Each tool is described by a ToolDefinition that the LLM uses for
// selection, and implements the Tool interface for execution. A tool failure
// is a result value, never a crash of the agent loop.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package tools

import (
	"context"
	"time"
)

// ToolCategory represents the category a tool belongs to.
type ToolCategory string

const (
	// CategoryFile includes tools that fetch or read task artifacts.
	CategoryFile ToolCategory = "file"

	// CategorySearch includes tools that query external search services.
	CategorySearch ToolCategory = "search"

	// CategoryAnalysis includes local document and table analysis tools.
	CategoryAnalysis ToolCategory = "analysis"
)

// String returns the string representation of the category.
func (c ToolCategory) String() string {
	return string(c)
}

// ParamType represents the type of a tool parameter.
type ParamType string

const (
	// ParamTypeString is a string parameter.
	ParamTypeString ParamType = "string"

	// ParamTypeInt is an integer parameter.
	ParamTypeInt ParamType = "integer"

	// ParamTypeFloat is a floating-point parameter.
	ParamTypeFloat ParamType = "number"

	// ParamTypeBool is a boolean parameter.
	ParamTypeBool ParamType = "boolean"

	// ParamTypeArray is an array parameter.
	ParamTypeArray ParamType = "array"
)

// ParamDef defines a single parameter for a tool.
type ParamDef struct {
	// Type is the parameter type.
	Type ParamType `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description"`

	// Required indicates if the parameter must be provided.
	Required bool `json:"required"`

	// Default is the default value if not provided.
	Default any `json:"default,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`

	// Items defines array item type (for array type).
	Items *ParamDef `json:"items,omitempty"`
}

// ToolDefinition describes a tool's interface for the LLM.
//
// This structure is designed to be serializable to JSON Schema format
// for use with LLM tool calling APIs.
type ToolDefinition struct {
	// Name is the unique identifier for the tool.
	Name string `json:"name"`

	// Description explains what the tool does. This text is what the LLM
	// sees when deciding whether to invoke the tool.
	Description string `json:"description"`

	// Parameters defines the input parameters.
	Parameters map[string]ParamDef `json:"parameters"`

	// Category is the tool category.
	Category ToolCategory `json:"category"`

	// SideEffects indicates if the tool writes outside its sandbox.
	SideEffects bool `json:"side_effects"`

	// Timeout is the execution timeout. Zero uses the executor default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// RequiredParams returns a list of required parameter names.
func (d *ToolDefinition) RequiredParams() []string {
	var required []string
	for name, param := range d.Parameters {
		if param.Required {
			required = append(required, name)
		}
	}
	return required
}

// Tool defines the interface for executable tools.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Definition returns the tool's parameter schema.
	Definition() ToolDefinition

	// Execute runs the tool with the given parameters.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   params - Input parameters as decoded from the LLM's arguments JSON
	//
	// Outputs:
	//   *Result - Execution result
	//   error - Non-nil only for failures the caller cannot represent as a Result
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result contains the outcome of a tool execution.
type Result struct {
	// Success indicates if the tool succeeded.
	Success bool `json:"success"`

	// OutputText is the text representation of the output fed back to the LLM.
	OutputText string `json:"output_text"`

	// Output is the structured output data, when the tool produces one.
	Output any `json:"output,omitempty"`

	// Error contains any error message.
	Error string `json:"error,omitempty"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration"`

	// Truncated indicates if output was truncated.
	Truncated bool `json:"truncated"`
}

// Failure builds a failed Result with the given message.
//
// Description:
//
//	Helper for tools that surface recoverable errors as result values
//	so the agent can adapt on its next turn.
func Failure(msg string) *Result {
	return &Result{Success: false, Error: msg, OutputText: "ERROR: " + msg}
}

// StringParam extracts a required string parameter.
//
// Outputs:
//   - string: The parameter value.
//   - bool: False if the parameter is missing or not a string.
func StringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringSliceParam extracts an optional string-array parameter.
//
// Description:
//
//	JSON decoding produces []any; this converts to []string, skipping
//	non-string elements. A missing key returns a nil slice and true.
func StringSliceParam(params map[string]any, key string) ([]string, bool) {
	v, ok := params[key]
	if !ok {
		return nil, true
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
