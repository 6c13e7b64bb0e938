// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

func TestFrameWriter_WireFormat(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewFrameWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteFrame(datatypes.NewMessageFrame("hello")))

	// One SSE record: data-prefixed JSON, blank-line terminated, no event: line.
	assert.Equal(t, "data: {\"type\":\"message\",\"content\":\"hello\"}\n\n", w.Body.String())
}

func TestFrameWriter_HeadersSetOnFirstFrame(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewFrameWriter(w)
	require.NoError(t, err)

	assert.False(t, writer.Started())
	assert.Empty(t, w.Header().Get("Content-Type"))

	require.NoError(t, writer.WriteFrame(datatypes.NewMessageFrame("hi")))

	assert.True(t, writer.Started())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}

func TestFrameWriter_TerminalLatch(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewFrameWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteFrame(datatypes.NewEndFrame()))
	assert.True(t, writer.Terminated())

	err = writer.WriteFrame(datatypes.NewMessageFrame("too late"))
	assert.Error(t, err)
	assert.NotContains(t, w.Body.String(), "too late")
}

func TestFrameWriter_KeepAliveBeforeFirstFrameIsNoOp(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewFrameWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteKeepAlive())

	// Nothing written, response still uncommitted.
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestFrameWriter_KeepAliveAfterStartIsComment(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewFrameWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteFrame(datatypes.NewMessageFrame("hi")))
	require.NoError(t, writer.WriteKeepAlive())

	assert.Contains(t, w.Body.String(), ": ping\n\n")
}
