// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/DraftForge/services/drafter/cancellation"
	"github.com/AleutianAI/DraftForge/services/drafter/handlers"
	"github.com/AleutianAI/DraftForge/services/drafter/services"
	"github.com/AleutianAI/DraftForge/services/llm"
)

// SetupRoutes wires the drafter's endpoints onto the router. The turn and
// stop handlers share one cancellation registry so stop requests reach
// in-flight turns.
func SetupRoutes(router *gin.Engine, client llm.CompletionClient, store services.DocumentStore, streamTokens bool) {
	registry := cancellation.NewRegistry()
	dispatcher := services.NewDispatcher(store)
	turnHandler := handlers.NewTurnHandler(client, dispatcher, registry, streamTokens)
	stopHandler := handlers.NewStopHandler(registry)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat/stream", turnHandler.HandleTurnStream)
		v1.POST("/chat/stop", stopHandler.HandleStop)
	}
}
