// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions, turns, and the
// client-local visible transcript.
package model

// MaxVisibleMessages bounds the in-memory transcript. When exceeded, the
// oldest messages are pruned to prevent unbounded memory growth.
const MaxVisibleMessages = 1000

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript holds the ordered visible messages for the active conversation.
//
// Invariant: at most one message is open (streaming) at any time. The open
// message, if any, is always the last assistant message appended.
//
// Transcript is not safe for concurrent use; the owning controller serializes
// access.
type Transcript struct {
	messages []*VisibleMessage
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]*VisibleMessage, 0)}
}

// =============================================================================
// APPEND OPERATIONS
// =============================================================================

// AppendUser appends a closed user message.
func (t *Transcript) AppendUser(content string) *VisibleMessage {
	msg := NewVisibleMessage(RoleUser, content)
	t.append(msg)
	return msg
}

// AppendAssistant appends a closed assistant message.
func (t *Transcript) AppendAssistant(content string) *VisibleMessage {
	msg := NewVisibleMessage(RoleAssistant, content)
	t.append(msg)
	return msg
}

// AppendSystem appends a closed system notice.
func (t *Transcript) AppendSystem(content string, class DisplayClass) *VisibleMessage {
	msg := NewSystemNotice(content, class)
	t.append(msg)
	return msg
}

// AppendToken extends the open assistant message with a content fragment.
// If no message is open, a new open assistant message is started first.
func (t *Transcript) AppendToken(token string) *VisibleMessage {
	open := t.Open()
	if open == nil {
		open = NewOpenAssistantMessage()
		t.append(open)
	}
	open.AppendToken(token)
	return open
}

func (t *Transcript) append(msg *VisibleMessage) {
	// A new append implicitly closes any still-open message so the
	// single-open invariant holds even on out-of-order event streams.
	if open := t.Open(); open != nil {
		open.Close()
	}
	t.messages = append(t.messages, msg)
	t.prune()
}

// =============================================================================
// OPEN MESSAGE MANAGEMENT
// =============================================================================

// Open returns the currently open assistant message, or nil.
func (t *Transcript) Open() *VisibleMessage {
	if len(t.messages) == 0 {
		return nil
	}
	last := t.messages[len(t.messages)-1]
	if last.IsOpen() {
		return last
	}
	return nil
}

// CloseOpen finalizes the open assistant message and returns it.
// Idempotent: returns nil when nothing is open.
func (t *Transcript) CloseOpen() *VisibleMessage {
	open := t.Open()
	if open == nil {
		return nil
	}
	open.Close()
	return open
}

// =============================================================================
// VIEWS
// =============================================================================

// Messages returns the visible messages in order. The returned slice is a
// copy; the messages themselves are shared.
func (t *Transcript) Messages() []*VisibleMessage {
	out := make([]*VisibleMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message, or nil if empty.
func (t *Transcript) Last() *VisibleMessage {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// Len returns the number of visible messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// IsEmpty reports whether the transcript holds no messages.
func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

// Turns projects the transcript onto durable turns: user and assistant
// messages only, system notices excluded, the open message excluded until it
// closes. This is the snapshot handed to persistence calls.
func (t *Transcript) Turns() []Turn {
	turns := make([]Turn, 0, len(t.messages))
	for _, msg := range t.messages {
		if !msg.Role.Valid() || msg.IsOpen() {
			continue
		}
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

// Replace swaps the entire transcript for the given stored turns, mapping
// each turn back into a closed visible message role-for-role.
func (t *Transcript) Replace(turns []Turn) {
	t.messages = make([]*VisibleMessage, 0, len(turns))
	for _, turn := range turns {
		t.messages = append(t.messages, NewVisibleMessage(turn.Role, turn.Content))
	}
}

// Clear removes all messages.
func (t *Transcript) Clear() {
	t.messages = make([]*VisibleMessage, 0)
}

// prune drops the oldest messages once the bound is exceeded.
func (t *Transcript) prune() {
	if len(t.messages) <= MaxVisibleMessages {
		return
	}
	excess := len(t.messages) - MaxVisibleMessages
	t.messages = append([]*VisibleMessage(nil), t.messages[excess:]...)
}
