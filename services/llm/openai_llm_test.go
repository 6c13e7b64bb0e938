// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

// newMockOpenAIServer creates a test server standing in for the OpenAI API
// and a client pointed at it. The handler serves /chat/completions; the
// caller owns the response body shape (SSE for streams, JSON otherwise).
func newMockOpenAIServer(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	return NewOpenAIClientWithConfig(config, "gpt-4o-mini"), server
}

func writeStreamChunk(w http.ResponseWriter, content string) {
	fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

// =============================================================================
// ChatStream Tests
// =============================================================================

func TestOpenAIClient_ChatStream_DeliversChunksInOrder(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeStreamChunk(w, "Hel")
		writeStreamChunk(w, "lo")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer server.Close()

	var chunks []string
	err := client.ChatStream(context.Background(), "system prompt", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, GenerationParams{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestOpenAIClient_ChatStream_SkipsEmptyDeltas(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeStreamChunk(w, "")
		writeStreamChunk(w, "only")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer server.Close()

	var chunks []string
	err := client.ChatStream(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, GenerationParams{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, chunks)
}

func TestOpenAIClient_ChatStream_CallbackErrorStopsStream(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeStreamChunk(w, "first")
		writeStreamChunk(w, "second")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer server.Close()

	wantErr := fmt.Errorf("client hung up")
	seen := 0
	err := client.ChatStream(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, GenerationParams{}, func(chunk string) error {
		seen++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, seen)
}

func TestOpenAIClient_ChatStream_UpstreamFailure(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
	})
	defer server.Close()

	err := client.ChatStream(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, GenerationParams{}, func(chunk string) error { return nil })

	assert.Error(t, err)
}

// =============================================================================
// Respond Tests
// =============================================================================

func TestOpenAIClient_Respond_PlainText(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"Draft saved."}}]}`)
	})
	defer server.Close()

	resp, err := client.Respond(context.Background(), "system", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Save it"},
	}, nil, GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "Draft saved.", resp.Output)
	assert.Empty(t, resp.ToolCalls)
}

func TestOpenAIClient_Respond_StructuredContentIsDecoded(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"value\":\"nested\",\"format\":\"markdown\"}"}}]}`)
	})
	defer server.Close()

	resp, err := client.Respond(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, nil, GenerationParams{})

	require.NoError(t, err)
	output, ok := resp.Output.(map[string]any)
	require.True(t, ok, "JSON object content should decode to a map")
	assert.Equal(t, "nested", output["value"])
}

func TestOpenAIClient_Respond_ToolCallsPreserveOrder(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"create_file","arguments":"{\"filename\":\"brs-draft.md\"}"}},
			{"id":"call_2","type":"function","function":{"name":"read_file","arguments":"{\"file_name\":\"brs-draft.md\"}"}}
		]}}]}`)
	})
	defer server.Close()

	resp, err := client.Respond(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Create then read"},
	}, nil, GenerationParams{})

	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "create_file", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"filename":"brs-draft.md"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "read_file", resp.ToolCalls[1].Name)
}

func TestOpenAIClient_Respond_NoChoices(t *testing.T) {
	client, server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	})
	defer server.Close()

	_, err := client.Respond(context.Background(), "", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Hi"},
	}, nil, GenerationParams{})

	assert.Error(t, err)
}
