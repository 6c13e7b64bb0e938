// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cancellation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CancelTargetsOneTurn(t *testing.T) {
	reg := NewRegistry()

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelA()
	defer cancelB()

	reg.Register("turn-a", cancelA)
	reg.Register("turn-b", cancelB)
	require.Equal(t, 2, reg.Active())

	assert.True(t, reg.Cancel("turn-a"))
	assert.Error(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
	assert.Equal(t, 1, reg.Active())
}

func TestRegistry_CancelUnknownID(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Cancel("never-registered"))
}

func TestRegistry_CancelAll(t *testing.T) {
	reg := NewRegistry()

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	reg.Register("turn-a", cancelA)
	reg.Register("turn-b", cancelB)

	assert.Equal(t, 2, reg.CancelAll())
	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
	assert.Equal(t, 0, reg.Active())

	// A second sweep finds nothing outstanding.
	assert.Equal(t, 0, reg.CancelAll())
}

func TestRegistry_RemoveDoesNotCancel(t *testing.T) {
	reg := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg.Register("turn-a", cancel)
	reg.Remove("turn-a")

	assert.NoError(t, ctx.Err())
	assert.False(t, reg.Cancel("turn-a"))
}

func TestRegistry_RegisterReplacesDuplicate(t *testing.T) {
	reg := NewRegistry()

	ctxOld, cancelOld := context.WithCancel(context.Background())
	ctxNew, cancelNew := context.WithCancel(context.Background())
	defer cancelNew()

	reg.Register("turn-a", cancelOld)
	reg.Register("turn-a", cancelNew)

	// The stale context is cancelled so it cannot leak; the new one stays live.
	assert.Error(t, ctxOld.Err())
	assert.NoError(t, ctxNew.Err())
	assert.Equal(t, 1, reg.Active())
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, cancel := context.WithCancel(context.Background())
			id := string(rune('a' + n%26))
			reg.Register(id, cancel)
			reg.Cancel(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.CancelAll())
}
