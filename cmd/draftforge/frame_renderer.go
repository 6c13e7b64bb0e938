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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// ANSI styles used when the writer is a terminal.
const (
	ansiDim   = "\033[2m"
	ansiReset = "\033[0m"
)

// frameRenderer converts stream frames into terminal output as they arrive.
//
// # Description
//
// Message frames carry the full accumulated assistant text, so the renderer
// tracks what it has already printed and emits only the unseen suffix. When
// a snapshot rewrites earlier text (no suffix relationship), the renderer
// starts a fresh line with the new snapshot rather than attempting in-place
// edits.
//
// Tool activity (log, function, functionResult frames) is printed on its
// own lines, dimmed on terminals, so document operations stay visible
// without drowning out the draft text.
//
// # Thread Safety
//
// Not thread-safe. One renderer per stream, driven from the stream reader
// callback.
type frameRenderer struct {
	writer   io.Writer
	colorize bool
	printed  string // Assistant text already written
	midLine  bool   // Cursor is mid-line in assistant text
	done     bool   // A terminal frame has been rendered
}

func newFrameRenderer(writer io.Writer, colorize bool) *frameRenderer {
	return &frameRenderer{writer: writer, colorize: colorize}
}

// Render writes one frame to the output.
func (r *frameRenderer) Render(frame datatypes.StreamFrame) {
	if r.done {
		return
	}

	switch frame.Type {
	case datatypes.FrameMessage:
		r.renderMessage(frame.Content)
	case datatypes.FrameLog:
		if msg, err := frame.LogMessage(); err == nil && msg != "" {
			r.statusLine(msg)
		}
	case datatypes.FrameFunction:
		name, err := frame.FunctionName()
		if err != nil {
			return
		}
		r.statusLine(fmt.Sprintf("→ %s(%s)", name, formatParameters(frame.Parameters)))
	case datatypes.FrameFunctionResult:
		result, err := frame.FunctionResult()
		if err != nil {
			return
		}
		r.statusLine(formatResult(result))
	case datatypes.FrameError:
		r.breakLine()
		fmt.Fprintf(r.writer, "Error: %s\n", frame.Message)
		r.done = true
	case datatypes.FrameEnd:
		r.breakLine()
		r.done = true
	}
}

// Finish ensures the output ends at the start of a line. Safe to call after
// a terminal frame or a broken stream.
func (r *frameRenderer) Finish() {
	r.breakLine()
}

// renderMessage prints the unseen suffix of a cumulative snapshot.
func (r *frameRenderer) renderMessage(content string) {
	if content == r.printed {
		return
	}
	if strings.HasPrefix(content, r.printed) {
		suffix := content[len(r.printed):]
		fmt.Fprint(r.writer, suffix)
	} else {
		// Snapshot rewrote earlier text; restart on a fresh line.
		r.breakLine()
		fmt.Fprint(r.writer, content)
	}
	r.printed = content
	r.midLine = !strings.HasSuffix(content, "\n")
}

// statusLine prints one dimmed line of tool or diagnostic activity.
func (r *frameRenderer) statusLine(text string) {
	r.breakLine()
	if r.colorize {
		fmt.Fprintf(r.writer, "%s%s%s\n", ansiDim, text, ansiReset)
	} else {
		fmt.Fprintf(r.writer, "%s\n", text)
	}
}

// breakLine moves the cursor to the start of a line if assistant text left
// it mid-line.
func (r *frameRenderer) breakLine() {
	if r.midLine {
		fmt.Fprintln(r.writer)
		r.midLine = false
	}
}

// formatParameters renders tool arguments as a compact key=value list with
// deterministic ordering.
func formatParameters(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, truncateValue(params[k])))
	}
	return strings.Join(parts, ", ")
}

// formatResult renders a dispatcher result map as a one-line status.
func formatResult(result map[string]any) string {
	if success, ok := result["success"].(bool); ok && !success {
		if msg, ok := result["error"].(string); ok && msg != "" {
			return fmt.Sprintf("✗ %s", msg)
		}
		return "✗ failed"
	}
	if msg, ok := result["message"].(string); ok && msg != "" {
		return fmt.Sprintf("✓ %s", msg)
	}
	return "✓ done"
}

// truncateValue bounds a parameter value for display. Drafts can carry
// multi-kilobyte user_inputs; the full text still reaches the server.
func truncateValue(v any) string {
	s := fmt.Sprintf("%v", v)
	const maxLen = 60
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
