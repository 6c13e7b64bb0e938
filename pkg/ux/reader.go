// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the DraftForge CLI.
//
// This file contains the stream reader that consumes an io.Reader source
// and emits parsed frames via a callback.
//
// Context Support:
//
//	The reader accepts context.Context for cancellation. When the context
//	is cancelled, reading stops and the context error is returned.
package ux

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// FrameCallback is invoked for each parsed frame. Returning an error
// stops reading.
type FrameCallback func(frame datatypes.StreamFrame) error

// =============================================================================
// Stream Reader Interface
// =============================================================================

// StreamReader reads a drafter response stream and invokes callbacks.
//
// Example:
//
//	reader := NewFrameStreamReader(NewFrameParser())
//	err := reader.Read(ctx, httpResp.Body, func(frame datatypes.StreamFrame) error {
//	    return conversation.Apply(frame)
//	})
type StreamReader interface {
	// Read processes a stream, invoking callback for each frame.
	//
	// Malformed records are logged and skipped; they never abort
	// consumption of subsequent records. The stream is complete when:
	//   - EOF is reached
	//   - A terminal frame (end or error) is received
	//   - Context is cancelled
	//   - Callback returns an error
	Read(ctx context.Context, r io.Reader, callback FrameCallback) error
}

// =============================================================================
// Frame Stream Reader
// =============================================================================

type frameStreamReader struct {
	parser FrameParser
}

// NewFrameStreamReader creates a StreamReader for the drafter's SSE
// frame format.
func NewFrameStreamReader(parser FrameParser) StreamReader {
	return &frameStreamReader{parser: parser}
}

// Read processes an SSE stream line by line. Nil frames (empty lines,
// comments) are skipped; parse failures on individual records are logged
// and skipped.
func (r *frameStreamReader) Read(ctx context.Context, reader io.Reader, callback FrameCallback) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		frame, err := r.parser.ParseLine(line)
		if err != nil {
			slog.Warn("Skipping malformed stream record", "error", err)
			continue
		}
		if frame == nil {
			continue
		}

		if err := callback(*frame); err != nil {
			return err
		}

		if frame.IsTerminal() {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamReader = (*frameStreamReader)(nil)
