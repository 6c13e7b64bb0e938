// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the drafter service.
//
// This file contains the StreamFrame wire type: the tagged union emitted on
// the normalized SSE stream. For turn request types, see chat.go. For
// document-store wire types, see documents.go.
package datatypes

import (
	"encoding/json"
	"fmt"
)

// FrameType identifies the variant of a StreamFrame.
type FrameType string

const (
	// FrameLog carries a diagnostic payload. Clients may ignore it.
	FrameLog FrameType = "log"

	// FrameMessage carries the assistant text so far. Content is the full
	// accumulated string, not a delta; clients replace, never append.
	FrameMessage FrameType = "message"

	// FrameFunction announces a tool invocation. Data holds the function
	// name as a JSON string; Parameters holds the parsed arguments.
	FrameFunction FrameType = "function"

	// FrameFunctionResult completes the most recently announced function
	// call. Data holds the normalized result object.
	FrameFunctionResult FrameType = "functionResult"

	// FrameError terminates the turn with a failure. Message carries the
	// error text.
	FrameError FrameType = "error"

	// FrameEnd terminates the turn successfully. No further frames follow.
	FrameEnd FrameType = "end"
)

// StreamFrame is one typed unit of the normalized SSE stream.
//
// # Description
//
// StreamFrame is a tagged union serialized as the JSON payload of one
// `data: <json>` SSE record. The Type field selects the variant; the
// remaining fields are populated per variant:
//
//   - log:            Data = {"message": "..."} object
//   - message:        Content = accumulated assistant text
//   - function:       Data = function name (JSON string), Parameters = args
//   - functionResult: Data = normalized result object
//   - error:          Message = error text
//   - end:            no payload
//
// Data is kept as json.RawMessage because its shape differs per variant
// (string for function frames, object for log and functionResult frames).
//
// # Invariants
//
// Exactly one end or error frame terminates a turn, and it is the last
// frame. A functionResult frame always follows its announcing function
// frame before any other function frame is emitted.
type StreamFrame struct {
	Type       FrameType       `json:"type"`
	Content    string          `json:"content,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// IsTerminal reports whether the frame ends the turn.
func (f StreamFrame) IsTerminal() bool {
	return f.Type == FrameEnd || f.Type == FrameError
}

// FunctionName decodes the function name from a function frame.
//
// # Outputs
//
//   - string: The announced function name.
//   - error: Non-nil if the frame is not a function frame or Data is not a
//     JSON string.
func (f StreamFrame) FunctionName() (string, error) {
	if f.Type != FrameFunction {
		return "", fmt.Errorf("frame type %q has no function name", f.Type)
	}
	var name string
	if err := json.Unmarshal(f.Data, &name); err != nil {
		return "", fmt.Errorf("decode function name: %w", err)
	}
	return name, nil
}

// FunctionResult decodes the result object from a functionResult frame.
func (f StreamFrame) FunctionResult() (map[string]any, error) {
	if f.Type != FrameFunctionResult {
		return nil, fmt.Errorf("frame type %q has no function result", f.Type)
	}
	var result map[string]any
	if err := json.Unmarshal(f.Data, &result); err != nil {
		return nil, fmt.Errorf("decode function result: %w", err)
	}
	return result, nil
}

// LogMessage decodes the message field from a log frame. Returns an empty
// string when the payload has no message field.
func (f StreamFrame) LogMessage() (string, error) {
	if f.Type != FrameLog {
		return "", fmt.Errorf("frame type %q has no log payload", f.Type)
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		return "", fmt.Errorf("decode log payload: %w", err)
	}
	return payload.Message, nil
}

// NewLogFrame builds a log frame carrying a diagnostic message plus
// optional extra fields.
func NewLogFrame(message string, extra map[string]any) (StreamFrame, error) {
	payload := map[string]any{"message": message}
	for k, v := range extra {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return StreamFrame{}, fmt.Errorf("marshal log payload: %w", err)
	}
	return StreamFrame{Type: FrameLog, Data: data}, nil
}

// NewMessageFrame builds a message frame carrying the full accumulated
// assistant text.
func NewMessageFrame(content string) StreamFrame {
	return StreamFrame{Type: FrameMessage, Content: content}
}

// NewFunctionFrame builds a function frame for the named call. The name is
// encoded as a JSON string in Data to match the wire contract.
func NewFunctionFrame(name string, parameters map[string]any) (StreamFrame, error) {
	data, err := json.Marshal(name)
	if err != nil {
		return StreamFrame{}, fmt.Errorf("marshal function name: %w", err)
	}
	if parameters == nil {
		parameters = map[string]any{}
	}
	return StreamFrame{Type: FrameFunction, Data: data, Parameters: parameters}, nil
}

// NewFunctionResultFrame builds a functionResult frame from a normalized
// dispatcher result.
func NewFunctionResultFrame(result map[string]any) (StreamFrame, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return StreamFrame{}, fmt.Errorf("marshal function result: %w", err)
	}
	return StreamFrame{Type: FrameFunctionResult, Data: data}, nil
}

// NewErrorFrame builds the terminal error frame for a failed turn.
func NewErrorFrame(message string) StreamFrame {
	return StreamFrame{Type: FrameError, Message: message}
}

// NewEndFrame builds the terminal end frame for a completed turn.
func NewEndFrame() StreamFrame {
	return StreamFrame{Type: FrameEnd}
}
