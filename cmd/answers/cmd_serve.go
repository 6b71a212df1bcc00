// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianAnswers/services/answers"
	"github.com/AleutianAI/AleutianAnswers/services/answers/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the answering agent as an HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdownTracing, err := telemetry.InitTracing(cmd.Context(), telemetry.DefaultTracingConfig())
		if err != nil {
			return err
		}
		defer shutdownTracing(context.Background())

		svc, err := answers.NewService(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		router := gin.Default()
		router.Use(otelgin.Middleware("answers-service"))
		svc.RegisterRoutes(router)

		server := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: router,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", slog.String("addr", cfg.ListenAddr))
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
