// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the DraftForge CLI.
//
// This file contains the conversation fold: the state machine that turns
// a sequence of stream frames into displayable conversation messages.
package ux

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// TurnState tracks one drafting turn's lifecycle.
type TurnState string

const (
	// TurnIdle means no turn is in flight.
	TurnIdle TurnState = "idle"
	// TurnSent means the request went out but no frame has arrived.
	TurnSent TurnState = "sent"
	// TurnReceiving means at least one frame has arrived.
	TurnReceiving TurnState = "receiving"
	// TurnComplete means the turn ended with an end frame.
	TurnComplete TurnState = "complete"
	// TurnFailed means the turn ended with an error frame.
	TurnFailed TurnState = "failed"
	// TurnStopped means the user cancelled the turn.
	TurnStopped TurnState = "stopped"
)

// ConversationMessage is one displayable entry in the transcript.
type ConversationMessage struct {
	ID             string
	Role           string
	Text           string
	FunctionName   string
	FunctionArgs   map[string]any
	FunctionResult map[string]any
	Complete       bool
	// ErrorText holds the server-reported error when the turn failed.
	// Text carries the rendered form; consumers read ErrorText so nothing
	// parses display strings.
	ErrorText string
	// Synthetic marks entries the client fabricated locally (the stop
	// notice) rather than folded from a received frame.
	Synthetic bool
	// RevealDelay paces when interactive affordances (copy, edit) become
	// active after the text settles. Presentation only; never gates
	// correctness.
	RevealDelay time.Duration
}

// StopNotice is the text of the synthetic assistant message recorded when
// the user cancels a turn.
const StopNotice = "(stopped)"

// Conversation folds stream frames into conversation state.
//
// # Description
//
// One Conversation tracks one transcript across turns. Begin() marks a
// turn as sent; Apply() folds each arriving frame; Stop() records a user
// cancellation. Message frames carry the full text so far, so the fold
// overwrites the open assistant message instead of appending — duplicated
// or re-delivered frames are harmless.
//
// # Thread Safety
//
// Safe for concurrent use. The reader goroutine applies frames while the
// UI goroutine snapshots messages.
type Conversation struct {
	mu          sync.Mutex
	messages    []*ConversationMessage
	state       TurnState
	assistantID string
	openCalls   []string
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{state: TurnIdle}
}

// Begin marks a new turn as sent and resets per-turn tracking.
func (c *Conversation) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = TurnSent
	c.assistantID = ""
	c.openCalls = nil
}

// AddUserMessage appends the user's outbound message to the transcript.
func (c *Conversation) AddUserMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, &ConversationMessage{
		ID:       uuid.New().String(),
		Role:     datatypes.RoleUser,
		Text:     text,
		Complete: true,
	})
}

// Apply folds one frame into the conversation.
//
// Frames arriving after the turn has terminated (including a user stop)
// are ignored. Frame semantics:
//   - log: no state change
//   - message: create the turn's assistant message on first sight, then
//     overwrite its text on every re-emission
//   - function: append a function-role message and push it on the open
//     call stack
//   - functionResult: pop the most recent open call and attach the
//     result; ignored when no call is open
//   - error: append an assistant message showing the error, terminate
//   - end: terminate and mark the open assistant message complete
func (c *Conversation) Apply(frame datatypes.StreamFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated() {
		return
	}
	if c.state == TurnSent {
		c.state = TurnReceiving
	}

	switch frame.Type {
	case datatypes.FrameLog:
		// Diagnostic only.

	case datatypes.FrameMessage:
		c.applyMessage(frame.Content)

	case datatypes.FrameFunction:
		c.applyFunction(frame)

	case datatypes.FrameFunctionResult:
		c.applyFunctionResult(frame)

	case datatypes.FrameError:
		c.messages = append(c.messages, &ConversationMessage{
			ID:        uuid.New().String(),
			Role:      datatypes.RoleAssistant,
			Text:      "Error: " + frame.Message,
			ErrorText: frame.Message,
			Complete:  true,
		})
		c.state = TurnFailed

	case datatypes.FrameEnd:
		if msg := c.find(c.assistantID); msg != nil {
			// Final update pass so dependent UI treats the message as
			// settled; the text itself does not change.
			msg.RevealDelay = revealDelayFor(msg.Text)
			msg.Complete = true
		}
		c.state = TurnComplete
	}
}

// Stop records a user cancellation: appends a synthetic assistant message
// noting the stop and terminates the turn. Idempotent; frames arriving
// after the stop are ignored.
func (c *Conversation) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated() {
		return
	}
	if msg := c.find(c.assistantID); msg != nil {
		msg.Complete = true
	}
	c.messages = append(c.messages, &ConversationMessage{
		ID:        uuid.New().String(),
		Role:      datatypes.RoleAssistant,
		Text:      StopNotice,
		Synthetic: true,
		Complete:  true,
	})
	c.state = TurnStopped
}

// State returns the current turn state.
func (c *Conversation) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot copy of the transcript.
func (c *Conversation) Messages() []ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ConversationMessage, len(c.messages))
	for i, msg := range c.messages {
		out[i] = *msg
	}
	return out
}

// =============================================================================
// Private Methods
// =============================================================================

func (c *Conversation) terminated() bool {
	switch c.state {
	case TurnComplete, TurnFailed, TurnStopped:
		return true
	}
	return false
}

// applyMessage creates or overwrites the turn's assistant message. The
// frame carries the full accumulated text, never a delta.
func (c *Conversation) applyMessage(content string) {
	if msg := c.find(c.assistantID); msg != nil {
		msg.Text = content
		msg.RevealDelay = revealDelayFor(content)
		return
	}
	msg := &ConversationMessage{
		ID:          uuid.New().String(),
		Role:        datatypes.RoleAssistant,
		Text:        content,
		RevealDelay: revealDelayFor(content),
	}
	c.assistantID = msg.ID
	c.messages = append(c.messages, msg)
}

func (c *Conversation) applyFunction(frame datatypes.StreamFrame) {
	name, err := frame.FunctionName()
	if err != nil {
		return
	}
	args := frame.Parameters
	if args == nil {
		args = map[string]any{}
	}
	msg := &ConversationMessage{
		ID:           uuid.New().String(),
		Role:         datatypes.RoleFunction,
		FunctionName: name,
		FunctionArgs: args,
	}
	c.messages = append(c.messages, msg)
	c.openCalls = append(c.openCalls, msg.ID)
}

// applyFunctionResult pops the most recent open call and attaches the
// result. An orphan result (no call open) is dropped.
func (c *Conversation) applyFunctionResult(frame datatypes.StreamFrame) {
	if len(c.openCalls) == 0 {
		return
	}
	result, err := frame.FunctionResult()
	if err != nil {
		return
	}

	id := c.openCalls[len(c.openCalls)-1]
	c.openCalls = c.openCalls[:len(c.openCalls)-1]
	if msg := c.find(id); msg != nil {
		msg.FunctionResult = result
		msg.Complete = true
	}
}

func (c *Conversation) find(id string) *ConversationMessage {
	if id == "" {
		return nil
	}
	for _, msg := range c.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// =============================================================================
// Reveal Delay
// =============================================================================

// revealDelayFor derives a presentation delay from the text's length and
// structure. Longer or more structured text (code fences, headers, lists,
// tables) settles visually more slowly, so affordances activate a little
// later.
func revealDelayFor(text string) time.Duration {
	words := len(strings.Fields(text))
	delay := time.Duration(words) * 4 * time.Millisecond

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			delay += 80 * time.Millisecond
		case strings.HasPrefix(trimmed, "#"):
			delay += 40 * time.Millisecond
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			delay += 20 * time.Millisecond
		case strings.HasPrefix(trimmed, "|"):
			delay += 20 * time.Millisecond
		}
	}

	const maxRevealDelay = 2 * time.Second
	if delay > maxRevealDelay {
		delay = maxRevealDelay
	}
	return delay
}
