// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services provides business logic services for the drafter.
//
// This package contains the document store client, the tool catalog
// advertised to the model, and the dispatcher that executes tool calls.
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Stateless: All state lives in the document store
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// docStoreTracer is the OpenTelemetry tracer for DocStoreClient operations.
var docStoreTracer = otel.Tracer("aleutian.drafter.services.docstore")

// Compile-time interface implementation check.
var _ DocumentStore = (*DocStoreClient)(nil)

// =============================================================================
// Interfaces
// =============================================================================

// DocumentStore defines the contract for the external document store that
// persists BRS documents and their versions.
//
// The store owns all document validation: filename patterns, duplicate
// rejection, and version rules. Clients forward arguments verbatim and
// surface the store's response body as-is.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type DocumentStore interface {
	// CreateFile creates a new, empty document.
	CreateFile(ctx context.Context, args datatypes.CreateFileArgs) (map[string]any, error)

	// WriteInitialData writes the first version of a document.
	WriteInitialData(ctx context.Context, args datatypes.WriteInitialDataArgs) (map[string]any, error)

	// ImplementEdits appends a new version to an existing document.
	ImplementEdits(ctx context.Context, args datatypes.ImplementEditsArgs) (map[string]any, error)

	// ReadFile fetches a document version without mutating anything.
	ReadFile(ctx context.Context, args datatypes.ReadFileArgs) (map[string]any, error)
}

// =============================================================================
// DocStoreClient
// =============================================================================

// DocStoreClient talks to the document store's RPC-style HTTP API. Each
// operation is one POST to {base}/rpc/{operation} with a JSON body; the
// store answers with a JSON object that is returned to the caller
// undecoded beyond the top-level map.
type DocStoreClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDocStoreClient creates a client for the document store.
//
// The store URL is read from the DOCSTORE_BASE_URL environment variable,
// defaulting to "http://aleutian-doc-store:3000" if not set.
func NewDocStoreClient() *DocStoreClient {
	baseURL := os.Getenv("DOCSTORE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://aleutian-doc-store:3000"
		slog.Warn("DOCSTORE_BASE_URL not set, using default", "url", baseURL)
	}
	return &DocStoreClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// NewDocStoreClientWithURL creates a client pinned to an explicit base URL.
// Used by tests to point the client at a local stand-in server.
func NewDocStoreClientWithURL(baseURL string) *DocStoreClient {
	return &DocStoreClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

func (c *DocStoreClient) CreateFile(ctx context.Context, args datatypes.CreateFileArgs) (map[string]any, error) {
	return c.call(ctx, ToolCreateFile, args)
}

func (c *DocStoreClient) WriteInitialData(ctx context.Context, args datatypes.WriteInitialDataArgs) (map[string]any, error) {
	return c.call(ctx, ToolWriteInitialData, args)
}

func (c *DocStoreClient) ImplementEdits(ctx context.Context, args datatypes.ImplementEditsArgs) (map[string]any, error) {
	return c.call(ctx, ToolImplementEdits, args)
}

func (c *DocStoreClient) ReadFile(ctx context.Context, args datatypes.ReadFileArgs) (map[string]any, error) {
	return c.call(ctx, ToolReadFile, args)
}

// =============================================================================
// Private Methods
// =============================================================================

// call makes one RPC-style HTTP request to the document store.
//
// The method respects context cancellation and timeouts. A non-2xx status
// is returned as an error carrying the store's response body, so callers
// can surface the store's own message to the user.
func (c *DocStoreClient) call(ctx context.Context, operation string, payload any) (map[string]any, error) {
	ctx, span := docStoreTracer.Start(ctx, "DocStoreClient.call")
	defer span.End()

	url := fmt.Sprintf("%s/rpc/%s", strings.TrimSuffix(c.baseURL, "/"), operation)
	span.SetAttributes(
		attribute.String("docstore.operation", operation),
		attribute.String("docstore.url", url),
	)

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document store request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "HTTP request failed")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetAttributes(attribute.Int("docstore.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, "document store error")
		return nil, fmt.Errorf("document store returned status %d: %s", resp.StatusCode, storeErrorMessage(body))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse document store response: %w", err)
	}
	return result, nil
}

// storeErrorMessage pulls the store's own error text out of a failure
// body when it has the shape {"error": "..."}; otherwise the raw body.
func storeErrorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}
