// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/DraftForge/services/drafter/cancellation"
	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// StopHandler cancels outstanding drafting turns.
type StopHandler interface {
	// HandleStop handles POST /v1/chat/stop.
	HandleStop(c *gin.Context)
}

type stopHandler struct {
	registry *cancellation.Registry
}

// NewStopHandler creates a StopHandler sharing the given registry with the
// turn handler. Panics if registry is nil.
func NewStopHandler(registry *cancellation.Registry) StopHandler {
	if registry == nil {
		panic("NewStopHandler: registry must not be nil")
	}
	return &stopHandler{registry: registry}
}

// HandleStop cancels drafting turns.
//
// # Description
//
// An empty body (or a body without request_id) cancels every outstanding
// turn. A body with request_id targets just that turn. The response always
// acknowledges with HTTP 200 and reports how many turns were cancelled;
// stopping an already-finished turn is not an error.
func (h *stopHandler) HandleStop(c *gin.Context) {
	var req datatypes.StopRequest
	if body, err := io.ReadAll(c.Request.Body); err == nil && len(body) > 0 {
		// Body is optional; a malformed one is treated as empty.
		if err := json.Unmarshal(body, &req); err != nil {
			slog.Debug("Stop request body did not parse, cancelling all", "error", err)
			req = datatypes.StopRequest{}
		}
	}

	var cancelled int
	if req.RequestID == "" {
		cancelled = h.registry.CancelAll()
		slog.Info("Stop signal received, cancelled all outstanding turns", "cancelled", cancelled)
	} else {
		if h.registry.Cancel(req.RequestID) {
			cancelled = 1
		}
		slog.Info("Stop signal received", "requestId", req.RequestID, "cancelled", cancelled)
	}

	c.JSON(http.StatusOK, datatypes.NewStopResponse(cancelled))
}
