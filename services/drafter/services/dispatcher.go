// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
	"github.com/AleutianAI/DraftForge/services/drafter/observability"
)

// dispatcherTracer is the OpenTelemetry tracer for Dispatcher operations.
var dispatcherTracer = otel.Tracer("aleutian.drafter.services.dispatcher")

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher executes tool calls against the document store and normalizes
// every outcome into a result map suitable for a functionResult frame.
//
// # Description
//
// The dispatcher never returns an error: transport failures, store
// rejections, and unknown tool names all become {success: false, error}
// maps, so a failed tool call degrades one frame rather than aborting the
// turn. Successful store responses pass through with success: true merged
// in if the store did not already include it.
//
// # Thread Safety
//
// Stateless apart from the injected store; safe for concurrent use.
type Dispatcher struct {
	store DocumentStore
}

// NewDispatcher creates a Dispatcher backed by the given store.
// Panics if store is nil; the dispatcher has no degraded mode without it.
func NewDispatcher(store DocumentStore) *Dispatcher {
	if store == nil {
		panic("NewDispatcher: store must not be nil")
	}
	return &Dispatcher{store: store}
}

// Dispatch executes one named tool call.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - name: Tool name as the provider returned it.
//   - rawArgs: The provider's argument JSON. Malformed JSON is treated as
//     an empty argument object; the store then reports whatever is missing.
//
// # Outputs
//
//   - map[string]any: Always non-nil. Either the store's response with
//     success: true, or {success: false, error: <message>}.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs string) map[string]any {
	ctx, span := dispatcherTracer.Start(ctx, "Dispatcher.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	slog.Info("Dispatching tool call", "tool", name)

	var result map[string]any
	var err error
	switch name {
	case ToolCreateFile:
		var args datatypes.CreateFileArgs
		parseArgs(rawArgs, &args)
		result, err = d.store.CreateFile(ctx, args)
	case ToolWriteInitialData:
		var args datatypes.WriteInitialDataArgs
		parseArgs(rawArgs, &args)
		result, err = d.store.WriteInitialData(ctx, args)
	case ToolImplementEdits:
		var args datatypes.ImplementEditsArgs
		parseArgs(rawArgs, &args)
		result, err = d.store.ImplementEdits(ctx, args)
	case ToolReadFile:
		var args datatypes.ReadFileArgs
		parseArgs(rawArgs, &args)
		result, err = d.store.ReadFile(ctx, args)
	default:
		observability.RecordDispatch(name, "unknown")
		return failure(fmt.Sprintf("Unknown function: %s", name))
	}

	if err != nil {
		span.RecordError(err)
		slog.Warn("Tool call failed", "tool", name, "error", err)
		observability.RecordDispatch(name, "error")
		return failure(err.Error())
	}

	observability.RecordDispatch(name, "ok")
	if result == nil {
		result = map[string]any{}
	}
	if _, present := result["success"]; !present {
		result["success"] = true
	}
	return result
}

// parseArgs decodes provider-supplied argument JSON. Any parse failure
// resets the target to its zero value, equivalent to an empty argument
// object. Unmarshal populates correctly-typed fields even when a sibling
// field fails on a type mismatch, so the reset covers type errors as well
// as syntax errors.
func parseArgs[T any](raw string, target *T) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		slog.Warn("Tool arguments did not parse, treating as empty", "error", err)
		var zero T
		*target = zero
	}
}

func failure(message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   message,
	}
}
