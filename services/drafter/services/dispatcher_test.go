// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// =============================================================================
// Mock Store
// =============================================================================

// mockStore records the last call it saw and answers with canned values.
type mockStore struct {
	lastOp    string
	lastArgs  any
	response  map[string]any
	err       error
	callCount int
}

var _ DocumentStore = (*mockStore)(nil)

func (m *mockStore) CreateFile(ctx context.Context, args datatypes.CreateFileArgs) (map[string]any, error) {
	m.record(ToolCreateFile, args)
	return m.response, m.err
}

func (m *mockStore) WriteInitialData(ctx context.Context, args datatypes.WriteInitialDataArgs) (map[string]any, error) {
	m.record(ToolWriteInitialData, args)
	return m.response, m.err
}

func (m *mockStore) ImplementEdits(ctx context.Context, args datatypes.ImplementEditsArgs) (map[string]any, error) {
	m.record(ToolImplementEdits, args)
	return m.response, m.err
}

func (m *mockStore) ReadFile(ctx context.Context, args datatypes.ReadFileArgs) (map[string]any, error) {
	m.record(ToolReadFile, args)
	return m.response, m.err
}

func (m *mockStore) record(op string, args any) {
	m.lastOp = op
	m.lastArgs = args
	m.callCount++
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatch_CreateFileForwardsArguments(t *testing.T) {
	store := &mockStore{response: map[string]any{"name": "brs-draft.md"}}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), ToolCreateFile, `{"filename":"brs-draft.md"}`)

	assert.Equal(t, ToolCreateFile, store.lastOp)
	assert.Equal(t, datatypes.CreateFileArgs{Filename: "brs-draft.md"}, store.lastArgs)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "brs-draft.md", result["name"])
}

func TestDispatch_StoreSuccessFieldIsNotOverwritten(t *testing.T) {
	store := &mockStore{response: map[string]any{"success": false, "error": "duplicate file name"}}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), ToolCreateFile, `{"filename":"existing.md"}`)

	// The store already decided the outcome; the dispatcher must not flip it.
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "duplicate file name", result["error"])
}

func TestDispatch_UnknownFunction(t *testing.T) {
	store := &mockStore{}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), "delete_everything", `{}`)

	assert.Equal(t, false, result["success"])
	assert.Equal(t, "Unknown function: delete_everything", result["error"])
	assert.Equal(t, 0, store.callCount, "unknown tool must not reach the store")
}

func TestDispatch_StoreErrorBecomesFailureResult(t *testing.T) {
	store := &mockStore{err: fmt.Errorf("document store returned status 409: file exists")}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), ToolWriteInitialData, `{"user_inputs":"# Draft","brs_file_name":"brs-draft.md"}`)

	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "409")
}

func TestDispatch_MalformedArgumentsBecomeEmptyObject(t *testing.T) {
	store := &mockStore{response: map[string]any{}}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), ToolReadFile, `{"file_name": unterminated`)

	// The call still reaches the store with zero-valued arguments.
	require.Equal(t, 1, store.callCount)
	assert.Equal(t, datatypes.ReadFileArgs{}, store.lastArgs)
	assert.Equal(t, true, result["success"])
}

func TestDispatch_WrongTypedArgumentsBecomeEmptyObject(t *testing.T) {
	store := &mockStore{response: map[string]any{}}
	d := NewDispatcher(store)

	// Valid JSON, wrong type on one field. Unmarshal still fills the
	// correctly-typed sibling, so the dispatcher must not let a half-decoded
	// argument set through.
	d.Dispatch(context.Background(), ToolWriteInitialData, `{"user_inputs":42,"brs_file_name":"brs-draft.md"}`)

	require.Equal(t, 1, store.callCount)
	assert.Equal(t, datatypes.WriteInitialDataArgs{}, store.lastArgs)
}

func TestDispatch_NilStoreResponse(t *testing.T) {
	store := &mockStore{response: nil}
	d := NewDispatcher(store)

	result := d.Dispatch(context.Background(), ToolReadFile, `{"file_name":"brs-draft.md"}`)

	require.NotNil(t, result)
	assert.Equal(t, true, result["success"])
}

func TestNewDispatcher_NilStorePanics(t *testing.T) {
	assert.Panics(t, func() { NewDispatcher(nil) })
}
