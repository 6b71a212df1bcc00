// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// Registry maps tool names to implementations.
//
// Description:
//
//	The registry is populated once at startup and read-only afterwards.
//	A missing name is a reportable dispatch error, not an undefined
//	reference: Get returns ok=false and callers surface that to the LLM
//	as a failed tool result.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
//
// Description:
//
//	Registers the tool under its Name(). Registering a duplicate name
//	returns an error rather than silently overwriting.
//
// Inputs:
//
//	tool - The tool to register. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if the tool is nil or the name is already taken.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("registry: cannot register nil tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("registry: tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister registers a tool and panics on error.
//
// Description:
//
//	For use during startup wiring where a duplicate registration is a
//	programming error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns the tool registered under the given name.
//
// Outputs:
//
//	Tool - The tool, or nil if not found.
//	bool - True if a tool was found.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// LLMToolDefs converts all registered tools to the LLM function-calling schema.
//
// Description:
//
//	Maps each ToolDefinition to an llm.ToolDef in the OpenAI function
//	calling format. Parameter types map 1:1 since ParamType values follow
//	JSON Schema names.
//
// Outputs:
//
//	[]llm.ToolDef - Definitions sorted by tool name for deterministic prompts.
func (r *Registry) LLMToolDefs() []llm.ToolDef {
	defs := r.Definitions()

	out := make([]llm.ToolDef, 0, len(defs))
	for _, def := range defs {
		properties := make(map[string]llm.ToolParamDef, len(def.Parameters))
		var required []string
		for name, p := range def.Parameters {
			pd := llm.ToolParamDef{
				Type:        string(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
				Default:     p.Default,
			}
			if p.Items != nil {
				pd.Items = &llm.ToolParamDef{
					Type:        string(p.Items.Type),
					Description: p.Items.Description,
				}
			}
			properties[name] = pd
			if p.Required {
				required = append(required, name)
			}
		}
		sort.Strings(required)

		out = append(out, llm.ToolDef{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters: llm.ToolParameters{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return out
}
