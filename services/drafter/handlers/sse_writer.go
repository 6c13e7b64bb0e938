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
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
	"github.com/AleutianAI/DraftForge/services/drafter/observability"
)

// =============================================================================
// Interface Definition
// =============================================================================

// FrameWriter defines the contract for writing stream frames to an HTTP
// response as Server-Sent Events.
//
// # Description
//
// FrameWriter abstracts SSE serialization and writing, enabling testability
// and separation from HTTP response mechanics. Each frame is written as one
// SSE record (`data: <json>\n\n`); the frame's type travels inside the JSON
// payload, so no `event:` field lines are emitted.
//
// SSE headers are set lazily on the first frame write. This lets a handler
// that fails before any frame is written fall back to a plain JSON error
// response with a real HTTP status code.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; handlers write frames
// and keepalives from different goroutines.
type FrameWriter interface {
	// WriteFrame writes a single frame. The first call sets SSE headers.
	// Calls after a terminal frame (end or error) are rejected.
	WriteFrame(frame datatypes.StreamFrame) error

	// WriteKeepAlive sends an SSE comment (": ping\n\n") to keep the
	// connection alive. A no-op before the first frame, so a keepalive
	// tick can never commit the response to streaming.
	WriteKeepAlive() error

	// Started reports whether the response has been committed to SSE,
	// i.e. at least one frame has been written.
	Started() bool

	// Terminated reports whether a terminal frame has been written.
	Terminated() bool
}

// =============================================================================
// Struct Definition
// =============================================================================

// frameWriter implements FrameWriter for HTTP SSE responses.
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - started: Whether SSE headers have been written
//   - terminated: Whether a terminal frame has been written
//   - mu: Mutex for thread-safe writes
type frameWriter struct {
	writer     http.ResponseWriter
	flusher    http.Flusher
	started    bool
	terminated bool
	mu         sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewFrameWriter creates a FrameWriter for the given ResponseWriter.
//
// # Outputs
//
//   - FrameWriter: Ready to write frames.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
func NewFrameWriter(w http.ResponseWriter) (FrameWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &frameWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteFrame writes a single frame in SSE format and flushes.
//
// Enforces the terminal-frame invariant: after an end or error frame, any
// further write returns an error instead of corrupting the stream.
func (w *frameWriter) WriteFrame(frame datatypes.StreamFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return fmt.Errorf("frame after terminal frame: %s", frame.Type)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if !w.started {
		setSSEHeaders(w.writer)
		w.started = true
	}

	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.flusher.Flush()

	if frame.IsTerminal() {
		w.terminated = true
	}
	observability.RecordFrame(string(frame.Type))
	return nil
}

// WriteKeepAlive sends a comment line to keep the connection alive.
//
// Comments are ignored by SSE clients but reset load balancer timeout
// counters. Before the first frame the connection is still uncommitted,
// so keepalives are skipped entirely.
func (w *frameWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started || w.terminated {
		return nil
	}

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	observability.RecordKeepAlive()
	return nil
}

func (w *frameWriter) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *frameWriter) Terminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminated
}

// =============================================================================
// Helper Functions
// =============================================================================

// setSSEHeaders configures HTTP response headers for SSE streaming:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ FrameWriter = (*frameWriter)(nil)
