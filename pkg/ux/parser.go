// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the DraftForge CLI.
//
// This file contains the parser for the drafter's SSE frame stream.
// Parsers are responsible for converting raw lines into StreamFrame
// structs.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state
//	management. This separation enables easy testing.
package ux

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// =============================================================================
// Frame Parser Interface
// =============================================================================

// FrameParser parses Server-Sent Events lines into StreamFrame structs.
//
// Wire format (one frame per SSE record, type inside the JSON):
//
//	data: {"type":"message","content":"Hello"}\n
//	\n
//	data: {"type":"end"}\n
//	\n
//
// Empty lines are record delimiters and lines starting with ":" are
// comments; both are ignored.
//
// Thread Safety:
//
//	The default implementation is stateless and inherently thread-safe.
type FrameParser interface {
	// ParseLine parses a single line of SSE input.
	//
	// Returns:
	//   - *datatypes.StreamFrame: The parsed frame, or nil for lines that
	//     carry no frame (empty lines, comments, non-data lines)
	//   - error: Non-nil if a data line's JSON payload failed to parse
	ParseLine(line string) (*datatypes.StreamFrame, error)
}

// =============================================================================
// Frame Parser Implementation
// =============================================================================

type frameParser struct{}

// NewFrameParser creates a stateless frame parser that can be safely
// shared across goroutines.
func NewFrameParser() FrameParser {
	return &frameParser{}
}

// ParseLine parses a single SSE line.
//
// Handles the following line types:
//   - Empty: Returns nil (record boundary)
//   - Comment (starts with ":"): Returns nil (keepalive pings)
//   - Data (starts with "data:"): Parses the JSON payload
//   - Other: Returns nil (field lines this protocol does not use)
func (p *frameParser) ParseLine(line string) (*datatypes.StreamFrame, error) {
	line = strings.TrimSpace(line)

	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, ":") {
		return nil, nil
	}

	payload := ""
	if strings.HasPrefix(line, "data: ") {
		payload = strings.TrimPrefix(line, "data: ")
	} else if strings.HasPrefix(line, "data:") {
		// Some servers omit the space after the colon.
		payload = strings.TrimPrefix(line, "data:")
	} else {
		return nil, nil
	}

	var frame datatypes.StreamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ FrameParser = (*frameParser)(nil)
