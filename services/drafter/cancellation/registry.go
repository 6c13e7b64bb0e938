// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cancellation tracks outstanding streaming turns so that a stop
// request can interrupt them.
//
// Each turn registers its request id together with the context.CancelFunc
// that aborts its upstream work. A stop request either cancels one id or
// clears the whole registry. Cancelling through the registered CancelFunc
// interrupts the in-flight provider call, not just the response write.
package cancellation

import (
	"context"
	"sync"
)

// Registry is a process-wide map of outstanding turn ids to their cancel
// functions.
//
// # Thread Safety
//
// Safe for concurrent use. All operations hold an internal mutex; cancel
// functions are invoked outside hot paths and are themselves safe to call
// more than once per the context package contract.
type Registry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRegistry creates an empty cancellation registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]context.CancelFunc),
	}
}

// Register records a turn as cancellable. Called when a turn starts.
// Registering an id that is already present replaces the previous entry
// after cancelling it, so a stale duplicate cannot leak a context.
func (r *Registry) Register(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	prev := r.active[id]
	r.active[id] = cancel
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Remove discards a turn without cancelling it. Called on every exit path
// of a turn (success, error, or stop already delivered).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Cancel aborts a single outstanding turn.
//
// # Outputs
//
//   - bool: true if the id was outstanding and has been cancelled.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.active[id]
	if ok {
		delete(r.active, id)
	}
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll aborts every outstanding turn and returns how many were
// cancelled. This preserves the wire behavior of a bodyless stop request:
// stop cancels whatever is currently outstanding.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.active))
	for id, cancel := range r.active {
		cancels = append(cancels, cancel)
		delete(r.active, id)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Active returns the number of outstanding turns.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
