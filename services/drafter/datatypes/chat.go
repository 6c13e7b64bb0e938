// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and response types for the streaming chat
// endpoint. For the SSE frame union, see frames.go.
package datatypes

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Byte length, not rune count, to bound memory for large payloads.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100

	// RoleUser, RoleAssistant and RoleFunction are the roles carried by
	// conversation messages on the wire.
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Sentinel validation errors surfaced as HTTP 400 responses.
var (
	// ErrNoMessages is returned when the messages list is missing or empty.
	ErrNoMessages = errors.New("messages must be a non-empty array")

	// ErrLastNotUser is returned when the final message is not user-role.
	ErrLastNotUser = errors.New("last message must have role \"user\"")
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces the per-message content size limit in bytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Message and Turn Request Types
// =============================================================================

// Message is one entry of the conversation history supplied by the client.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant function"`
	Content string `json:"content" validate:"maxbytes"`
}

// TurnRequest represents the body of a streaming turn request.
//
// # Description
//
// TurnRequest carries the full conversation history and the mode flag for
// one turn. The server replies with a normalized SSE frame stream (see
// frames.go). RequestID is optional; when absent the server generates one
// so the turn can still be cancelled by id.
//
// # Fields
//
//   - Messages: Required. Ordered history, 1-100 entries. The last entry
//     must be user-role or the request is rejected with HTTP 400.
//   - JDIMode: Optional. Selects the proactive "just do it" system prompt.
//   - RequestID: Optional. Identifier used for tracing and cancellation.
//
// # Validation
//
// Validate enforces the structural rules that the HTTP layer translates
// into 400 responses: non-empty messages, known roles, size limits, and
// user-role last message.
type TurnRequest struct {
	Messages  []Message `json:"messages" validate:"omitempty,max=100,dive"`
	JDIMode   bool      `json:"jdiMode"`
	RequestID string    `json:"request_id,omitempty" validate:"omitempty,uuid4"`
}

// Validate checks the TurnRequest against the turn contract.
//
// # Outputs
//
//   - error: ErrNoMessages, ErrLastNotUser, or a validator error describing
//     the offending field. Nil when the request is acceptable.
func (r *TurnRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid turn request: %w", err)
	}
	if r.Messages[len(r.Messages)-1].Role != RoleUser {
		return ErrLastNotUser
	}
	return nil
}

// EnsureDefaults populates the request id when the client omitted it.
func (r *TurnRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
}

// =============================================================================
// Stop Request Types
// =============================================================================

// StopRequest is the optional body of a stop request. An empty body (or an
// empty RequestID) cancels every outstanding turn; a populated RequestID
// targets one turn.
type StopRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Cancelled int    `json:"cancelled"`
	Timestamp int64  `json:"timestamp"`
}

// NewStopResponse builds the acknowledgement for a stop request.
func NewStopResponse(cancelled int) StopResponse {
	return StopResponse{
		Success:   true,
		Message:   "Stop signal sent",
		Cancelled: cancelled,
		Timestamp: time.Now().UnixMilli(),
	}
}
