// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

func TestFrameRenderer_PrintsOnlyUnseenSuffix(t *testing.T) {
	var out bytes.Buffer
	r := newFrameRenderer(&out, false)

	r.Render(datatypes.NewMessageFrame("Hel"))
	r.Render(datatypes.NewMessageFrame("Hello, world"))
	r.Render(datatypes.NewMessageFrame("Hello, world"))

	if got := out.String(); got != "Hello, world" {
		t.Errorf("output = %q, want %q", got, "Hello, world")
	}
}

func TestFrameRenderer_RewrittenSnapshotRestartsLine(t *testing.T) {
	var out bytes.Buffer
	r := newFrameRenderer(&out, false)

	r.Render(datatypes.NewMessageFrame("first draft"))
	r.Render(datatypes.NewMessageFrame("second draft"))

	got := out.String()
	if !strings.Contains(got, "first draft\n") {
		t.Errorf("expected line break before rewrite: %q", got)
	}
	if !strings.HasSuffix(got, "second draft") {
		t.Errorf("expected rewritten snapshot at end: %q", got)
	}
}

func TestFrameRenderer_ToolLinesBreakAssistantText(t *testing.T) {
	var out bytes.Buffer
	r := newFrameRenderer(&out, false)

	frame, err := datatypes.NewFunctionFrame("read_file", map[string]any{"file_name": "brs_draft.md"})
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}

	r.Render(datatypes.NewMessageFrame("Reading the draft"))
	r.Render(frame)

	want := "Reading the draft\n→ read_file(file_name=brs_draft.md)\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFrameRenderer_IgnoresFramesAfterTerminal(t *testing.T) {
	var out bytes.Buffer
	r := newFrameRenderer(&out, false)

	r.Render(datatypes.NewEndFrame())
	r.Render(datatypes.NewMessageFrame("late text"))

	if strings.Contains(out.String(), "late text") {
		t.Errorf("frame after terminal was rendered: %q", out.String())
	}
}

func TestFrameRenderer_ColorizeWrapsStatusLines(t *testing.T) {
	var out bytes.Buffer
	r := newFrameRenderer(&out, true)

	frame, err := datatypes.NewLogFrame("Calling create_file", nil)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	r.Render(frame)

	got := out.String()
	if !strings.Contains(got, ansiDim) || !strings.Contains(got, ansiReset) {
		t.Errorf("expected dimmed status line: %q", got)
	}
}

func TestFormatParameters(t *testing.T) {
	t.Run("deterministic key order", func(t *testing.T) {
		got := formatParameters(map[string]any{
			"user_inputs":   "add a scope section",
			"brs_file_name": "brs_draft.md",
		})
		want := "brs_file_name=brs_draft.md, user_inputs=add a scope section"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("empty map", func(t *testing.T) {
		if got := formatParameters(nil); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})

	t.Run("long values truncated", func(t *testing.T) {
		got := formatParameters(map[string]any{
			"user_inputs": strings.Repeat("x", 200),
		})
		if !strings.Contains(got, "...") {
			t.Errorf("expected truncation marker: %q", got)
		}
		if len(got) > 100 {
			t.Errorf("value not bounded: %d chars", len(got))
		}
	})
}

func TestFormatResult(t *testing.T) {
	cases := []struct {
		name   string
		result map[string]any
		want   string
	}{
		{"failure with error", map[string]any{"success": false, "error": "File already exists"}, "✗ File already exists"},
		{"failure without error", map[string]any{"success": false}, "✗ failed"},
		{"success with message", map[string]any{"success": true, "message": "created"}, "✓ created"},
		{"success without message", map[string]any{"success": true}, "✓ done"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatResult(tc.result); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
