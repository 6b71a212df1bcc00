// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
)

var handlerTracer = otel.Tracer("answers.handlers")

// RunRequest is the body for POST /v1/answers/run.
type RunRequest struct {
	Question string `json:"question"`
	TaskID   string `json:"task_id"`
	FileName string `json:"file_name"`
}

// RegisterRoutes attaches the service's HTTP surface to a gin engine.
//
// Routes:
//
//	POST /v1/answers/run - Answer one question synchronously.
//	GET  /v1/answers/tools - List registered tool definitions.
//	GET  /v1/answers/health - Liveness probe.
//	GET  /metrics - Prometheus metrics.
func (s *Service) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/answers/run", s.handleRun())
	router.GET("/v1/answers/tools", s.handleTools())
	router.GET("/v1/answers/health", s.handleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// handleRun answers one question synchronously.
//
// Description:
//
//	Blocks for the full run. A failed run maps to 502 since the failure
//	is in the LLM or tool collaborators, not the request; a malformed
//	request maps to 400.
func (s *Service) handleRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleRun")
		defer span.End()

		var req RunRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result, err := s.loop.Run(ctx, req.Question, req.TaskID, req.FileName)
		if err != nil {
			if errors.Is(err, agent.ErrEmptyQuestion) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Run failed",
				slog.String("task_id", req.TaskID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleTools lists the registered tool definitions.
func (s *Service) handleTools() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": s.registry.Definitions()})
	}
}

// handleHealth is the liveness probe.
func (s *Service) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"model":  s.cfg.Model,
			"tools":  s.registry.Count(),
		})
	}
}
