// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package main contains the DraftForge CLI streaming turn service.
//
// This file defines the TurnStreamingService interface and its
// implementation for communicating with the drafter's streaming endpoints.
// It follows the layered streaming architecture:
//
//	HTTP Response Body → FrameParser → FrameStreamReader → Conversation → TurnResult
//
// # File Organization
//
//  1. Interfaces (contracts first)
//  2. Configuration structs
//  3. Implementation structs
//  4. Constructor functions
//  5. Methods on structs
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AleutianAI/DraftForge/pkg/ux"
	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// INTERFACES
// =============================================================================

// HTTPClient abstracts HTTP POST operations so tests can inject mocks.
type HTTPClient interface {
	// Post sends a POST request with the given content type and body.
	// The caller must close the response body.
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// TurnStreamingService defines the contract for streaming drafting turns.
//
// # Description
//
// This interface sends one conversation turn to the drafter service and
// consumes the frame stream it replies with, rendering assistant text and
// document tool activity as they arrive. Implementations handle frame
// parsing, rendering, and cancellation internally.
//
// # Inputs
//
// Methods accept context.Context for cancellation and timeout control.
//
// # Outputs
//
// SendTurn returns *TurnResult containing:
//   - Answer: Final assistant message text
//   - FunctionCalls: Number of document tools invoked during the turn
//   - State: Terminal conversation state (complete, failed, stopped)
//   - ErrorMessage: Server-reported error text, if the stream failed
//
// # Limitations
//
//   - Context cancellation may result in partial results
//   - Large turns may time out if the HTTP timeout is too short
//
// # Assumptions
//
//   - Server returns frames as data-only SSE records
//   - Caller handles context lifecycle (cancellation, timeout)
type TurnStreamingService interface {
	// SendTurn sends the conversation history and streams the response.
	//
	// Inputs:
	//   - ctx: Context for cancellation/timeout. When cancelled, the stream stops.
	//   - messages: Ordered history. The last entry must be user-role.
	//
	// Outputs:
	//   - *TurnResult: Accumulated result with answer and tool activity.
	//     A turn cancelled mid-stream returns the partial result with
	//     State TurnStopped alongside the context error.
	//   - error: Non-nil on network, server, or stream read errors,
	//     and on cancellation.
	SendTurn(ctx context.Context, messages []datatypes.Message) (*TurnResult, error)

	// Stop asks the server to cancel turns. An empty requestID cancels every
	// outstanding turn; a populated one targets a single turn.
	//
	// Outputs:
	//   - int: Number of turns the server cancelled.
	//   - error: Non-nil on network or server errors.
	Stop(ctx context.Context, requestID string) (int, error)

	// ActiveRequestID returns the request id of the in-flight turn, or empty
	// when no turn is running.
	ActiveRequestID() string

	// Close releases any resources held by the service.
	Close() error
}

// =============================================================================
// CONFIGURATION STRUCTS
// =============================================================================

// TurnStreamingServiceConfig holds configuration for the turn streaming service.
//
// Only BaseURL is required; all other fields have sensible defaults.
//
//   - BaseURL: Required. Drafter URL without trailing slash.
//   - JDIMode: Optional. Selects the proactive system prompt server-side.
//   - Writer: Optional. Output destination. Default: os.Stdout.
//   - Timeout: Optional. HTTP timeout. Default: 5 minutes.
type TurnStreamingServiceConfig struct {
	BaseURL string        // Base URL of drafter (required)
	JDIMode bool          // Proactive mode flag sent with each turn (optional)
	Writer  io.Writer     // Output destination (optional)
	Timeout time.Duration // HTTP timeout (optional)
}

// =============================================================================
// IMPLEMENTATION STRUCTS
// =============================================================================

// turnStreamingService implements TurnStreamingService.
//
// # Description
//
// Communicates with the /v1/chat/stream and /v1/chat/stop endpoints.
// Assistant text arrives as cumulative snapshots; the renderer prints only
// the unseen suffix of each snapshot so output appears token-by-token.
//
// # Thread Safety
//
// The active request id is protected by mutex. SendTurn itself is not safe
// for concurrent use; run one turn at a time per service.
type turnStreamingService struct {
	client          HTTPClient
	parser          ux.FrameParser
	reader          ux.StreamReader
	baseURL         string
	jdiMode         bool
	writer          io.Writer
	colorize        bool
	activeRequestID string
	mu              sync.Mutex
}

// =============================================================================
// CONSTRUCTOR FUNCTIONS
// =============================================================================

// NewTurnStreamingService creates a turn streaming service with a production
// HTTP client. ANSI styling is enabled only when writing to a terminal.
func NewTurnStreamingService(config TurnStreamingServiceConfig) TurnStreamingService {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return newTurnStreamingService(
		&defaultHTTPClient{client: &http.Client{Timeout: timeout}},
		config,
		writerIsTerminal(config.Writer),
	)
}

// NewTurnStreamingServiceWithClient creates a turn streaming service with an
// injected HTTP client. Use this constructor for testing with mock clients.
// Styling is disabled so tests see plain output.
func NewTurnStreamingServiceWithClient(client HTTPClient, config TurnStreamingServiceConfig) TurnStreamingService {
	return newTurnStreamingService(client, config, false)
}

func newTurnStreamingService(client HTTPClient, config TurnStreamingServiceConfig, colorize bool) *turnStreamingService {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}

	parser := ux.NewFrameParser()

	return &turnStreamingService{
		client:   client,
		parser:   parser,
		reader:   ux.NewFrameStreamReader(parser),
		baseURL:  config.BaseURL,
		jdiMode:  config.JDIMode,
		writer:   writer,
		colorize: colorize,
	}
}

// writerIsTerminal reports whether output goes to an interactive terminal.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if w == nil {
		f, ok = os.Stdout, true
	}
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// TURN RESULT
// =============================================================================

// TurnResult is the accumulated outcome of one streamed turn.
type TurnResult struct {
	RequestID     string       // Id assigned to this turn, usable with Stop
	Answer        string       // Final assistant message text
	FunctionCalls int          // Number of document tools invoked
	State         ux.TurnState // Terminal conversation state
	ErrorMessage  string       // Server-reported error text, empty on success
	StartedAt     time.Time    // When the request was sent
	FirstFrameAt  time.Time    // When the first frame arrived (zero if none)
	CompletedAt   time.Time    // When the stream terminated
}

// Duration returns the wall-clock time of the turn.
func (r *TurnResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// =============================================================================
// TURN STREAMING SERVICE METHODS
// =============================================================================

// SendTurn sends the history and streams the drafter's response.
//
// # Description
//
// Posts a turn request to /v1/chat/stream, reads the frame stream, renders
// each frame to the writer, and returns the accumulated result. The request
// id is generated client-side so an in-flight turn can be cancelled via Stop
// while SendTurn blocks. When the context is cancelled mid-stream the turn
// folds to TurnStopped and the partial result is returned with the error.
//
// # Limitations
//
//   - Does not retry on transient errors
//   - Partial results on context cancellation may be incomplete
func (s *turnStreamingService) SendTurn(ctx context.Context, messages []datatypes.Message) (*TurnResult, error) {
	requestID := uuid.New().String()

	s.setActiveRequestID(requestID)
	defer s.setActiveRequestID("")

	slog.Debug("sending streaming turn",
		"request_id", requestID,
		"jdi_mode", s.jdiMode,
		"history_length", len(messages),
	)

	result := &TurnResult{
		RequestID: requestID,
		StartedAt: time.Now(),
	}

	resp, err := s.postTurn(ctx, requestID, messages)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	if err := s.validateResponse(requestID, resp); err != nil {
		return nil, err
	}

	if err := s.processStream(ctx, requestID, resp.Body, result); err != nil {
		if result.State == ux.TurnStopped {
			// User stop: hand back what arrived before the cancel along
			// with the context error.
			result.CompletedAt = time.Now()
			return result, err
		}
		return nil, err
	}

	result.CompletedAt = time.Now()

	slog.Debug("streaming turn completed",
		"request_id", requestID,
		"state", string(result.State),
		"function_calls", result.FunctionCalls,
		"duration_ms", result.Duration().Milliseconds(),
	)

	return result, nil
}

// postTurn marshals the turn request and sends it to the stream endpoint.
func (s *turnStreamingService) postTurn(ctx context.Context, requestID string, messages []datatypes.Message) (*http.Response, error) {
	targetURL := fmt.Sprintf("%s/v1/chat/stream", s.baseURL)

	reqBody := datatypes.TurnRequest{
		Messages:  messages,
		JDIMode:   s.jdiMode,
		RequestID: requestID,
	}

	postBody, err := json.Marshal(reqBody)
	if err != nil {
		slog.Error("failed to marshal turn request",
			"request_id", requestID,
			"error", err,
		)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := s.client.Post(ctx, targetURL, "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		slog.Error("turn HTTP request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return nil, fmt.Errorf("http post: %w", err)
	}

	return resp, nil
}

// validateResponse checks HTTP response status. Non-200 responses carry a
// JSON error body which is surfaced in the returned error.
func (s *turnStreamingService) validateResponse(requestID string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("drafter returned error (failed to read body)",
			"request_id", requestID,
			"status_code", resp.StatusCode,
			"read_error", err,
		)
		return fmt.Errorf("server error (%d): failed to read response body", resp.StatusCode)
	}

	slog.Error("drafter returned error",
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"response_body", string(bodyBytes),
	)
	return fmt.Errorf("server error (%d): %s", resp.StatusCode, serverErrorText(bodyBytes))
}

// serverErrorText extracts the human-readable part of an error body.
// Pre-stream failures arrive as {"success":false,"message":...} or
// {"success":false,"error":...}; anything else is returned verbatim.
func serverErrorText(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(body)
}

// processStream reads frames from the body, renders them, and folds them
// into the result via a Conversation.
func (s *turnStreamingService) processStream(ctx context.Context, requestID string, body io.Reader, result *TurnResult) error {
	conv := ux.NewConversation()
	conv.Begin()

	renderer := newFrameRenderer(s.writer, s.colorize)

	err := s.reader.Read(ctx, body, func(frame datatypes.StreamFrame) error {
		if result.FirstFrameAt.IsZero() {
			result.FirstFrameAt = time.Now()
		}
		renderer.Render(frame)
		conv.Apply(frame)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// User stop: terminate the fold so the partial answer and the
			// stop notice are recorded before the result is filled.
			conv.Stop()
			renderer.Finish()
			fillResultFromConversation(result, conv)
			slog.Info("stream stopped", "request_id", requestID)
			return fmt.Errorf("read stream: %w", err)
		}
		// Let the caller see what arrived before the stream broke.
		fillResultFromConversation(result, conv)
		slog.Error("stream reading failed",
			"request_id", requestID,
			"error", err,
		)
		return fmt.Errorf("read stream: %w", err)
	}

	renderer.Finish()
	fillResultFromConversation(result, conv)
	return nil
}

// fillResultFromConversation copies the conversation's terminal state into
// the turn result. Synthetic entries (the stop notice) never become the
// answer; error frames surface through ErrorText, not their display text.
func fillResultFromConversation(result *TurnResult, conv *ux.Conversation) {
	result.State = conv.State()
	for _, msg := range conv.Messages() {
		switch {
		case msg.FunctionName != "":
			result.FunctionCalls++
		case msg.Role == datatypes.RoleAssistant:
			if msg.ErrorText != "" {
				result.ErrorMessage = msg.ErrorText
				continue
			}
			if msg.Synthetic {
				continue
			}
			result.Answer = msg.Text
		}
	}
}

// setActiveRequestID records the in-flight turn id for Stop targeting.
func (s *turnStreamingService) setActiveRequestID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRequestID = id
}

// ActiveRequestID returns the id of the in-flight turn, or empty.
func (s *turnStreamingService) ActiveRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRequestID
}

// Stop asks the server to cancel turns.
//
// # Description
//
// Posts to /v1/chat/stop. An empty requestID sends an empty body, which the
// server treats as "cancel everything". The server always acknowledges with
// 200, reporting how many turns it actually cancelled.
func (s *turnStreamingService) Stop(ctx context.Context, requestID string) (int, error) {
	targetURL := fmt.Sprintf("%s/v1/chat/stop", s.baseURL)

	postBody, err := json.Marshal(datatypes.StopRequest{RequestID: requestID})
	if err != nil {
		return 0, fmt.Errorf("marshal stop request: %w", err)
	}

	resp, err := s.client.Post(ctx, targetURL, "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		slog.Error("stop HTTP request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return 0, fmt.Errorf("http post: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read stop response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("server error (%d): %s", resp.StatusCode, serverErrorText(bodyBytes))
	}

	var ack datatypes.StopResponse
	if err := json.Unmarshal(bodyBytes, &ack); err != nil {
		return 0, fmt.Errorf("parse stop response: %w", err)
	}

	slog.Debug("stop acknowledged",
		"request_id", requestID,
		"cancelled", ack.Cancelled,
	)
	return ack.Cancelled, nil
}

// Close releases resources held by the service. No-op for the HTTP-based
// implementation; provided for interface compliance.
func (s *turnStreamingService) Close() error {
	return nil
}

// =============================================================================
// DEFAULT HTTP CLIENT
// =============================================================================

// defaultHTTPClient is the production HTTPClient backed by net/http.
type defaultHTTPClient struct {
	client *http.Client
}

func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.client.Do(req)
}

var _ HTTPClient = (*defaultHTTPClient)(nil)
var _ TurnStreamingService = (*turnStreamingService)(nil)
