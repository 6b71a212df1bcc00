// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package answers wires the agent loop, tool registry, and HTTP surface
// into a runnable question-answering service.
package answers

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/answers/agent/stages"
	"github.com/AleutianAI/AleutianAnswers/services/answers/checkpoint"
	"github.com/AleutianAI/AleutianAnswers/services/answers/config"
	"github.com/AleutianAI/AleutianAnswers/services/answers/tools"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// Service owns the configured agent loop and its collaborators.
//
// Thread Safety: Service is safe for concurrent use after construction.
type Service struct {
	cfg         config.Config
	loop        *agent.Loop
	registry    *tools.Registry
	checkpoints *checkpoint.Store
}

// NewService builds a service from configuration.
//
// Description:
//
//	Constructs the OpenAI client, registers every tool the configuration
//	enables, and assembles the loop. Search and transcription tools are
//	registered only when their API keys are present; the agent simply
//	never sees the capability otherwise.
//
// Inputs:
//
//	cfg - Validated configuration.
//
// Outputs:
//
//	*Service - The wired service. Caller must call Close() when done.
//	error - Non-nil if a required collaborator cannot be built.
func NewService(cfg config.Config) (*Service, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("answers: OPENAI_API_KEY is required")
	}

	client := llm.NewOpenAIClientWithConfig(cfg.OpenAIAPIKey, cfg.Model, "")
	registry := buildRegistry(cfg)
	executor := tools.NewExecutor(tools.DefaultExecutorOptions())

	opts := []agent.LoopOption{
		agent.WithStage(agent.StateWorker, stages.NewWorker(client, registry)),
		agent.WithStage(agent.StateTools, stages.NewToolExecution(registry, executor)),
		agent.WithStage(agent.StateEvaluator, stages.NewEvaluator(client)),
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithToolCallBudget(cfg.ToolCallBudget),
	}

	svc := &Service{cfg: cfg, registry: registry}

	if cfg.CheckpointPath != "" {
		store, err := checkpoint.Open(checkpoint.DefaultConfig(cfg.CheckpointPath))
		if err != nil {
			return nil, fmt.Errorf("answers: opening checkpoint store: %w", err)
		}
		svc.checkpoints = store
		opts = append(opts, agent.WithCheckpointStore(store))
	}

	svc.loop = agent.NewLoop(opts...)

	slog.Info("Answering service ready",
		slog.String("model", cfg.Model),
		slog.Int("max_iterations", cfg.MaxIterations),
		slog.Int("tool_call_budget", cfg.ToolCallBudget),
		slog.Int("tools", registry.Count()),
	)
	return svc, nil
}

// buildRegistry registers the tool set the configuration enables.
func buildRegistry(cfg config.Config) *tools.Registry {
	registry := tools.NewRegistry()

	registry.MustRegister(tools.NewGetQuestionFileTool(cfg.ScoringBaseURL, nil))
	registry.MustRegister(tools.NewSpreadsheetSumTool())
	registry.MustRegister(tools.NewSumSelectedItemsTool())
	registry.MustRegister(tools.NewBotanicalClassifyTool())
	registry.MustRegister(tools.NewTableCommutativityTool())
	registry.MustRegister(tools.NewWikiSearchTool("", nil))

	if cfg.TavilyAPIKey != "" {
		registry.MustRegister(tools.NewWebSearchTool(cfg.TavilyAPIKey, "", nil))
	} else {
		slog.Warn("TAVILY_API_KEY not set, web_search tool disabled")
	}

	if cfg.AssemblyAIAPIKey != "" {
		registry.MustRegister(tools.NewTranscribeAudioTool(cfg.AssemblyAIAPIKey, "", nil))
	} else {
		slog.Warn("ASSEMBLYAI_API_KEY not set, transcribe_audio tool disabled")
	}

	return registry
}

// Loop returns the agent loop.
func (s *Service) Loop() *agent.Loop {
	return s.loop
}

// Registry returns the tool registry.
func (s *Service) Registry() *tools.Registry {
	return s.registry
}

// Config returns the service configuration.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Close releases the service's resources.
func (s *Service) Close() error {
	if s.checkpoints != nil {
		return s.checkpoints.Close()
	}
	return nil
}
