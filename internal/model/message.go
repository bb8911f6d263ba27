// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions, turns, and the
// client-local visible transcript.
package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn or visible message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the persisted roles.
// Only user and assistant turns are stored; system is client-local.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one durable message inside a session. Turns are immutable once
// appended; insertion order is significant.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// =============================================================================
// VISIBLE MESSAGE TYPE
// =============================================================================

// DisplayClass is an optional styling hint for system notices.
type DisplayClass string

const (
	ClassNone    DisplayClass = ""
	ClassInfo    DisplayClass = "info"    // connection established, session loaded
	ClassWarning DisplayClass = "warning" // reconnecting
	ClassError   DisplayClass = "error"   // decode failures, backend errors
)

// VisibleMessage is the client-local rendering of a turn or system notice.
// An assistant message may be "open": still accumulating streamed tokens.
// At most one open message exists in a transcript at any time.
type VisibleMessage struct {
	Role      Role
	Class     DisplayClass
	Timestamp time.Time

	// Final content once closed. While open, content lives in the builder.
	Content string

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	open      bool
	streaming strings.Builder
}

// NewVisibleMessage creates a closed message with the given content.
func NewVisibleMessage(role Role, content string) *VisibleMessage {
	return &VisibleMessage{Role: role, Content: content, Timestamp: time.Now()}
}

// NewSystemNotice creates a closed system message with a display class.
func NewSystemNotice(content string, class DisplayClass) *VisibleMessage {
	return &VisibleMessage{Role: RoleSystem, Content: content, Class: class, Timestamp: time.Now()}
}

// NewOpenAssistantMessage creates a streaming assistant message.
func NewOpenAssistantMessage() *VisibleMessage {
	return &VisibleMessage{Role: RoleAssistant, Timestamp: time.Now(), open: true}
}

// IsOpen reports whether the message is still accumulating tokens.
func (m *VisibleMessage) IsOpen() bool {
	return m.open
}

// AppendToken appends a content fragment to an open message.
// Appending to a closed message is a no-op.
func (m *VisibleMessage) AppendToken(token string) {
	if m.open {
		m.streaming.WriteString(token)
	}
}

// Close finalizes an open message, merging the streamed content.
// Closing an already-closed message is a no-op.
func (m *VisibleMessage) Close() {
	if !m.open {
		return
	}
	m.Content = m.streaming.String()
	m.streaming.Reset()
	m.open = false
}

// DisplayContent returns the content to render, streamed or final.
func (m *VisibleMessage) DisplayContent() string {
	if m.open {
		return m.streaming.String()
	}
	return m.Content
}

// IsEmpty reports whether the message has no content at all.
func (m *VisibleMessage) IsEmpty() bool {
	return len(m.Content) == 0 && m.streaming.Len() == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *VisibleMessage) Preview(maxLen int) string {
	content := m.DisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}
