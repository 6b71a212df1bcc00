// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the answering service configuration.
//
// Configuration layers, later wins: built-in defaults, an optional YAML
// file, environment variables. Secrets (API keys) come from the
// environment only and never from the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultScoringBaseURL is the grading service the agent fetches question
// attachments from and submits answers to.
const DefaultScoringBaseURL = "https://agents-course-unit4-scoring.hf.space"

// Config holds all settings for the answering service.
type Config struct {
	// Model is the OpenAI model identifier used by both worker and
	// evaluator. Default "gpt-4o-mini".
	Model string `yaml:"model"`

	// MaxIterations is the worker iteration ceiling per run. Default 10.
	MaxIterations int `yaml:"max_iterations"`

	// ToolCallBudget is the run-level tool invocation ceiling.
	// Default 25; 0 disables the budget.
	ToolCallBudget int `yaml:"tool_call_budget"`

	// ScoringBaseURL is the grading service base URL.
	ScoringBaseURL string `yaml:"scoring_base_url"`

	// ListenAddr is the HTTP listen address for serve mode. Default ":8233".
	ListenAddr string `yaml:"listen_addr"`

	// CheckpointPath is the BadgerDB directory for conversation
	// checkpoints. Empty disables checkpointing.
	CheckpointPath string `yaml:"checkpoint_path"`

	// OpenAIAPIKey authenticates LLM calls. Environment only
	// (OPENAI_API_KEY).
	OpenAIAPIKey string `yaml:"-"`

	// TavilyAPIKey enables web search. Environment only (TAVILY_API_KEY);
	// empty disables the web_search tool.
	TavilyAPIKey string `yaml:"-"`

	// AssemblyAIAPIKey enables audio transcription. Environment only
	// (ASSEMBLYAI_API_KEY); empty disables the transcribe_audio tool.
	AssemblyAIAPIKey string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Model:          "gpt-4o-mini",
		MaxIterations:  10,
		ToolCallBudget: 25,
		ScoringBaseURL: DefaultScoringBaseURL,
		ListenAddr:     ":8233",
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment.
//
// Inputs:
//
//	path - YAML file path. Empty skips the file layer; a named file that
//	       does not exist is an error.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Non-nil if the file is unreadable or invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("ANSWERS_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIterations = n
		}
	}
	if v := os.Getenv("ANSWERS_TOOL_CALL_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ToolCallBudget = n
		}
	}
	if v := os.Getenv("ANSWERS_SCORING_BASE_URL"); v != "" {
		c.ScoringBaseURL = v
	}
	if v := os.Getenv("ANSWERS_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ANSWERS_CHECKPOINT_PATH"); v != "" {
		c.CheckpointPath = v
	}

	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	c.AssemblyAIAPIKey = os.Getenv("ASSEMBLYAI_API_KEY")
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model must not be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.ToolCallBudget < 0 {
		return fmt.Errorf("config: tool_call_budget must not be negative, got %d", c.ToolCallBudget)
	}
	if c.ScoringBaseURL == "" {
		return fmt.Errorf("config: scoring_base_url must not be empty")
	}
	return nil
}
