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
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/DraftForge/pkg/logging"
	"github.com/AleutianAI/DraftForge/services/drafter/observability"
	"github.com/AleutianAI/DraftForge/services/drafter/routes"
	"github.com/AleutianAI/DraftForge/services/drafter/services"
	"github.com/AleutianAI/DraftForge/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("drafter-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newCompletionClient selects the completion backend. LLM_PROVIDER=ollama
// targets a local Ollama server; the default is the OpenAI-compatible API.
func newCompletionClient() (llm.CompletionClient, error) {
	switch provider := os.Getenv("LLM_PROVIDER"); provider {
	case "ollama":
		return llm.NewOllamaClient()
	case "", "openai":
		return llm.NewOpenAIClient()
	default:
		slog.Warn("Unknown LLM_PROVIDER, defaulting to openai", "provider", provider)
		return llm.NewOpenAIClient()
	}
}

func main() {
	port := os.Getenv("DRAFTER_PORT")
	if port == "" {
		port = "12310"
	}

	logging.Setup(logging.ServiceConfig("drafter-service"))

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	log.Println("Configuring the completion client")
	client, err := newCompletionClient()
	if err != nil {
		log.Fatalf("Failed to initialize completion client: %v", err)
	}

	store := services.NewDocStoreClient()

	// DRAFTER_STREAM_TOKENS=1 selects the incremental streaming path; the
	// default is the structured tool-calling path.
	streamTokens := os.Getenv("DRAFTER_STREAM_TOKENS") == "1"

	router := gin.Default()
	router.Use(otelgin.Middleware("drafter-service"))

	routes.SetupRoutes(router, client, store, streamTokens)

	log.Println("Starting the drafter server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
