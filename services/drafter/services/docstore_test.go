// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

func TestDocStoreClient_CreateFile(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"brs-draft.md","latestVersion":0}`))
	}))
	defer server.Close()

	client := NewDocStoreClientWithURL(server.URL)
	result, err := client.CreateFile(context.Background(), datatypes.CreateFileArgs{Filename: "brs-draft.md"})

	require.NoError(t, err)
	assert.Equal(t, "/rpc/create_file", gotPath)
	assert.Equal(t, map[string]any{"filename": "brs-draft.md"}, gotBody)
	assert.Equal(t, "brs-draft.md", result["name"])
}

func TestDocStoreClient_SurfacesStoreErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"file brs-draft.md already exists"}`))
	}))
	defer server.Close()

	client := NewDocStoreClientWithURL(server.URL)
	_, err := client.CreateFile(context.Background(), datatypes.CreateFileArgs{Filename: "brs-draft.md"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "already exists")
}

func TestDocStoreClient_ReadFileOmitsZeroVersion(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":"# Draft","version":3}`))
	}))
	defer server.Close()

	client := NewDocStoreClientWithURL(server.URL)
	result, err := client.ReadFile(context.Background(), datatypes.ReadFileArgs{FileName: "brs-draft.md"})

	require.NoError(t, err)
	assert.NotContains(t, gotBody, "version", "zero version should default to latest on the store side")
	assert.Equal(t, "# Draft", result["content"])
}

func TestDocStoreClient_RespectsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewDocStoreClientWithURL(server.URL)
	_, err := client.ReadFile(ctx, datatypes.ReadFileArgs{FileName: "brs-draft.md"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocStoreClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewDocStoreClientWithURL(server.URL)
	_, err := client.ReadFile(context.Background(), datatypes.ReadFileArgs{FileName: "brs-draft.md"})

	assert.Error(t, err)
}
