// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions, turns, and the
// client-local visible transcript.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is the durable, ordered conversation record. The remote store owns
// it; the client holds a cached copy and a client-generated identifier.
type Session struct {
	SessionID string    `json:"sessionId"`
	User      string    `json:"user"`
	Title     string    `json:"title"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSessionID generates an opaque session identifier.
// The client generates the identifier so outbound question frames can carry
// it before the store has ever seen the session.
func NewSessionID() string {
	return uuid.NewString()
}

// TurnCount returns the number of stored turns.
func (s *Session) TurnCount() int {
	return len(s.Turns)
}

// =============================================================================
// SESSION METADATA
// =============================================================================

// SessionMeta is the lightweight listing shape returned by the store.
// Older store deployments populated FirstMessage instead of Title.
type SessionMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	FirstMessage string    `json:"firstMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayTitle returns the best available label for a session listing.
func (m SessionMeta) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.FirstMessage != "" {
		return m.FirstMessage
	}
	return "Untitled Chat"
}

// =============================================================================
// TITLE DERIVATION
// =============================================================================

// DeriveTitle builds a session title from the first user question:
// newlines collapsed, rune-safe truncation to 50 characters.
func DeriveTitle(firstQuestion string) string {
	title := strings.ReplaceAll(firstQuestion, "\n", " ")
	title = strings.ReplaceAll(title, "\r", "")
	title = strings.TrimSpace(title)
	if title == "" {
		return "New conversation"
	}
	runes := []rune(title)
	if len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}
	return title
}
