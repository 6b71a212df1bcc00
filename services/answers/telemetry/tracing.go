// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig controls trace export.
type TracingConfig struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// OTLPEndpoint is the OTLP receiver endpoint.
	OTLPEndpoint string
}

// DefaultTracingConfig returns development defaults.
//
// Environment variables override defaults:
//   - OTEL_TRACES_EXPORTER: exporter type ("none" by default)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:  "answers",
		Exporter:     getEnvOr("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint: getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// InitTracing initializes the OpenTelemetry tracer provider.
//
// Description:
//
//	After InitTracing returns successfully, otel.Tracer() spans created
//	throughout the application are exported. With exporter "none" the
//	global no-op provider stays in place.
//
// Outputs:
//
//	shutdown - Flushes and stops the provider. Must be called on exit.
//	error - Non-nil if the exporter cannot be created.
//
// Thread Safety: Call once at application startup.
func InitTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	if cfg.Exporter == "none" || cfg.Exporter == "" {
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("telemetry: unknown trace exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
