// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP handlers for the drafter service.
//
// The central handler turns one chat request into a normalized SSE stream
// of typed frames. Everything the client sees — streamed text, tool calls,
// tool results, errors — arrives as one frame type on one response body.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/DraftForge/services/drafter/cancellation"
	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
	"github.com/AleutianAI/DraftForge/services/drafter/observability"
	"github.com/AleutianAI/DraftForge/services/drafter/services"
	"github.com/AleutianAI/DraftForge/services/llm"
)

// heartbeatInterval is how often keepalive comments are sent on an open
// stream. Load balancer idle timeouts commonly sit at 60s; 15s keeps the
// connection comfortably inside that.
const heartbeatInterval = 15 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// TurnHandler processes drafting turns over SSE.
type TurnHandler interface {
	// HandleTurnStream handles POST /v1/chat/stream.
	HandleTurnStream(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// turnHandler implements TurnHandler.
//
// # Description
//
// Owns the full turn lifecycle:
//   - Request parsing and validation
//   - Cancellation registration
//   - Provider calls (token streaming or structured with tools)
//   - Tool dispatch and frame emission
//   - Terminal frame and error handling
//
// # Fields
//
//   - client: Completion backend (must not be nil)
//   - dispatcher: Tool dispatcher (must not be nil)
//   - registry: Cancellation registry shared with the stop handler
//   - tracer: OpenTelemetry tracer for distributed tracing
//   - streamTokens: When true, turns stream incremental text instead of
//     using the structured tool-calling path
//
// # Thread Safety
//
// Thread-safe. All fields are read-only after construction; per-turn state
// lives on the stack of each request.
type turnHandler struct {
	client       llm.CompletionClient
	dispatcher   *services.Dispatcher
	registry     *cancellation.Registry
	tracer       trace.Tracer
	streamTokens bool
}

// =============================================================================
// Constructor
// =============================================================================

// NewTurnHandler creates a TurnHandler with the provided dependencies.
//
// # Inputs
//
//   - client: Completion backend. Must not be nil.
//   - dispatcher: Tool dispatcher. Must not be nil.
//   - registry: Cancellation registry. Must not be nil; shared with the
//     stop handler so stop requests can reach in-flight turns.
//   - streamTokens: Select the incremental streaming path instead of the
//     structured tool-calling path.
//
// # Examples
//
//	handler := handlers.NewTurnHandler(client, dispatcher, registry, false)
//	router.POST("/v1/chat/stream", handler.HandleTurnStream)
//
// # Limitations
//
//   - Panics on nil client, dispatcher, or registry
func NewTurnHandler(
	client llm.CompletionClient,
	dispatcher *services.Dispatcher,
	registry *cancellation.Registry,
	streamTokens bool,
) TurnHandler {
	if client == nil {
		panic("NewTurnHandler: client must not be nil")
	}
	if dispatcher == nil {
		panic("NewTurnHandler: dispatcher must not be nil")
	}
	if registry == nil {
		panic("NewTurnHandler: registry must not be nil")
	}
	return &turnHandler{
		client:       client,
		dispatcher:   dispatcher,
		registry:     registry,
		tracer:       otel.Tracer("aleutian.drafter.handlers.chat_streaming"),
		streamTokens: streamTokens,
	}
}

// =============================================================================
// Handler Methods
// =============================================================================

// HandleTurnStream processes one drafting turn with SSE streaming.
//
// # Description
//
// Handles POST /v1/chat/stream requests. The flow is:
//  1. Parse and validate request body (reject with HTTP 400)
//  2. Register the turn in the cancellation registry
//  3. Create the frame writer and start the heartbeat
//  4. Run the turn against the provider, dispatching tool calls inline
//  5. Write exactly one terminal frame (end or error)
//
// Failures before the first frame fall back to a plain HTTP 500 JSON body;
// once streaming has started, failures become an error frame so the client
// never sees a half-open stream without a terminal.
//
// # Inputs
//
//   - c: Gin context containing the HTTP request
func (h *turnHandler) HandleTurnStream(c *gin.Context) {
	startTime := time.Now()

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleTurnStream")
	defer span.End()

	observability.StreamStarted()
	defer observability.StreamEnded()

	status := "error"
	defer func() {
		observability.RecordTurn(status, time.Since(startTime).Seconds())
	}()

	// Step 1: Parse request body
	var req datatypes.TurnRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse turn request", "error", err)
		observability.RecordError(observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Turn request validation failed", "error", err)
		observability.RecordError(observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.message_count", len(req.Messages)),
		attribute.Bool("request.jdi_mode", req.JDIMode),
	)

	// Step 3: Register the turn for cancellation. The registry entry is
	// removed on every exit path; a stop request cancels turnCtx, which
	// interrupts the in-flight provider call.
	turnCtx, cancelTurn := context.WithCancel(ctx)
	h.registry.Register(req.RequestID, cancelTurn)
	defer func() {
		h.registry.Remove(req.RequestID)
		cancelTurn()
	}()

	// Step 4: Create the frame writer. Headers stay unset until the first
	// frame, so early failures can still use a real HTTP status.
	writer, err := NewFrameWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		observability.RecordError(observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "streaming not supported"})
		return
	}

	// Step 5: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go h.runHeartbeat(turnCtx, writer, heartbeatDone)

	// Step 6: Run the turn
	slog.Info("Processing drafting turn",
		"requestId", req.RequestID,
		"messages", len(req.Messages),
		"jdiMode", req.JDIMode,
		"streamTokens", h.streamTokens,
	)
	if h.streamTokens {
		err = h.runStreamingTurn(turnCtx, &req, writer)
	} else {
		err = h.runStructuredTurn(turnCtx, &req, writer)
	}

	// Step 7: Terminal frame
	if err != nil {
		status = h.finishWithError(c, span, &req, writer, err)
		return
	}
	if writeErr := writer.WriteFrame(datatypes.NewEndFrame()); writeErr != nil {
		span.RecordError(writeErr)
		slog.Warn("Failed to write end frame", "requestId", req.RequestID, "error", writeErr)
		observability.RecordError(observability.ErrorCodeClientDisconnect)
		return
	}

	status = "success"
	slog.Info("Drafting turn complete",
		"requestId", req.RequestID,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
}

// =============================================================================
// Turn Execution
// =============================================================================

// runStreamingTurn streams incremental text from the provider. Every chunk
// is appended to an accumulator and re-emitted as a message frame carrying
// the full text so far; the client replaces its displayed text instead of
// applying deltas.
func (h *turnHandler) runStreamingTurn(ctx context.Context, req *datatypes.TurnRequest, writer FrameWriter) error {
	ctx, span := h.tracer.Start(ctx, "runStreamingTurn")
	defer span.End()

	var accumulator strings.Builder
	err := h.client.ChatStream(ctx, services.SystemPrompt(req.JDIMode), req.Messages, llm.GenerationParams{},
		func(chunk string) error {
			accumulator.WriteString(chunk)
			return writer.WriteFrame(datatypes.NewMessageFrame(accumulator.String()))
		})
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("response.chars", accumulator.Len()))
	return nil
}

// runStructuredTurn asks the provider for one structured response with the
// document tools advertised, emits the resolved text (if any), then
// dispatches each tool call in provider order: function frame, dispatch,
// functionResult frame. Dispatch failures degrade to failure results and
// never abort the turn.
func (h *turnHandler) runStructuredTurn(ctx context.Context, req *datatypes.TurnRequest, writer FrameWriter) error {
	ctx, span := h.tracer.Start(ctx, "runStructuredTurn")
	defer span.End()

	resp, err := h.client.Respond(ctx, services.SystemPrompt(req.JDIMode), req.Messages, services.DocumentTools(), llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		observability.RecordError(observability.ErrorCodeLLMError)
		return err
	}

	if text, ok := llm.ResolveOutputText(resp.Output); ok {
		if err := writer.WriteFrame(datatypes.NewMessageFrame(text)); err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int("response.tool_calls", len(resp.ToolCalls)))
	for _, call := range resp.ToolCalls {
		if err := h.dispatchToolCall(ctx, req.RequestID, call, writer); err != nil {
			return err
		}
	}
	return nil
}

// dispatchToolCall emits the frame pair for one tool call. The returned
// error is a stream write failure only; tool errors travel inside the
// functionResult frame.
func (h *turnHandler) dispatchToolCall(ctx context.Context, requestID string, call llm.ToolCall, writer FrameWriter) error {
	if logFrame, err := datatypes.NewLogFrame(fmt.Sprintf("Calling %s", call.Name), nil); err == nil {
		if err := writer.WriteFrame(logFrame); err != nil {
			return err
		}
	}

	callFrame, err := datatypes.NewFunctionFrame(call.Name, parseCallParameters(call.Arguments))
	if err != nil {
		slog.Error("Failed to encode function frame", "tool", call.Name, "error", err)
		return fmt.Errorf("encode function frame: %w", err)
	}
	if err := writer.WriteFrame(callFrame); err != nil {
		return err
	}

	result := h.dispatcher.Dispatch(ctx, call.Name, call.Arguments)

	resultFrame, err := datatypes.NewFunctionResultFrame(result)
	if err != nil {
		slog.Error("Failed to encode function result frame", "tool", call.Name, "error", err)
		resultFrame, _ = datatypes.NewFunctionResultFrame(map[string]any{
			"success": false,
			"error":   "internal: result not serializable",
		})
	}
	if err := writer.WriteFrame(resultFrame); err != nil {
		return err
	}

	slog.Info("Tool call dispatched", "requestId", requestID, "tool", call.Name, "success", result["success"])
	return nil
}

// parseCallParameters decodes a provider argument string for display in a
// function frame. Malformed JSON becomes an empty object; the frame is
// informative, and the dispatcher reparses the raw string itself.
func parseCallParameters(raw string) map[string]any {
	params := map[string]any{}
	if raw == "" {
		return params
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		slog.Warn("Tool call arguments did not parse, using empty object", "error", err)
		return map[string]any{}
	}
	return params
}

// =============================================================================
// Error Handling
// =============================================================================

// finishWithError terminates a failed turn and returns the metrics status.
//
// Before the first frame the response is still uncommitted, so the client
// gets a plain HTTP 500 JSON body. After that, the failure becomes an
// error frame. A cancelled turn (stop request or client disconnect) is
// reported as "cancelled" rather than "error".
func (h *turnHandler) finishWithError(c *gin.Context, span trace.Span, req *datatypes.TurnRequest, writer FrameWriter, err error) string {
	span.RecordError(err)
	span.SetStatus(codes.Error, "turn failed")

	cancelled := errors.Is(err, context.Canceled)
	if cancelled {
		slog.Info("Drafting turn cancelled", "requestId", req.RequestID)
	} else {
		slog.Error("Drafting turn failed", "requestId", req.RequestID, "error", err)
		observability.RecordError(observability.ErrorCodeInternal)
	}

	if !writer.Started() {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	} else if writeErr := writer.WriteFrame(datatypes.NewErrorFrame(err.Error())); writeErr != nil {
		slog.Debug("Failed to write error frame", "requestId", req.RequestID, "error", writeErr)
	}

	if cancelled {
		return "cancelled"
	}
	return "error"
}

// =============================================================================
// Heartbeat
// =============================================================================

// runHeartbeat sends periodic keepalive comments until the turn finishes.
// Keepalives are no-ops before the first frame, so the goroutine can start
// before the response is committed to streaming.
func (h *turnHandler) runHeartbeat(ctx context.Context, writer FrameWriter, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
		}
	}
}
