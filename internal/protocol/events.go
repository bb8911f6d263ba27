// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the duplex text-frame wire contract with the KMS
// realtime backend and the decoder for inbound frames.
package protocol

// =============================================================================
// FRAME KINDS
// =============================================================================

// Frame kind strings as they appear on the wire.
const (
	KindStateUpdate         = "state_update"
	KindAnswerToken         = "answer_token"
	KindAnswer              = "answer"
	KindClarificationNeeded = "clarification_needed"
	KindEndOfAnswer         = "end_of_answer"
)

// =============================================================================
// INBOUND EVENT VARIANTS
// =============================================================================

// Event is a decoded inbound frame from the realtime backend.
type Event interface {
	// SessionID returns the session identifier embedded in the frame.
	// Empty for frames that could not be parsed at all.
	SessionID() string

	eventKind() string
}

// StateUpdateEvent carries the human-readable "thinking" narration.
type StateUpdateEvent struct {
	Session string
	Status  string
}

func (e StateUpdateEvent) SessionID() string { return e.Session }
func (e StateUpdateEvent) eventKind() string { return KindStateUpdate }

// AnswerTokenEvent carries an incremental content fragment for the open
// assistant message.
type AnswerTokenEvent struct {
	Session string
	Token   string
}

func (e AnswerTokenEvent) SessionID() string { return e.Session }
func (e AnswerTokenEvent) eventKind() string { return KindAnswerToken }

// AnswerEvent carries a complete final answer, used when the backend does
// not stream.
type AnswerEvent struct {
	Session string
	Content string
}

func (e AnswerEvent) SessionID() string { return e.Session }
func (e AnswerEvent) eventKind() string { return KindAnswer }

// ClarificationEvent asks the user a follow-up question before the backend
// can answer.
type ClarificationEvent struct {
	Session string
	Prompt  string
}

func (e ClarificationEvent) SessionID() string { return e.Session }
func (e ClarificationEvent) eventKind() string { return KindClarificationNeeded }

// EndOfAnswerEvent marks the open assistant message closed; no further
// tokens are expected for this turn.
type EndOfAnswerEvent struct {
	Session string
}

func (e EndOfAnswerEvent) SessionID() string { return e.Session }
func (e EndOfAnswerEvent) eventKind() string { return KindEndOfAnswer }

// BackendErrorEvent carries an error reported by the backend itself.
type BackendErrorEvent struct {
	Session string
	Message string
}

func (e BackendErrorEvent) SessionID() string { return e.Session }
func (e BackendErrorEvent) eventKind() string { return "error" }

// MalformedEvent is produced locally when a frame fails to parse or carries
// an unrecognized kind with no error field. It is surfaced as a system
// notice, never thrown.
type MalformedEvent struct {
	Session string
	Reason  string
}

func (e MalformedEvent) SessionID() string { return e.Session }
func (e MalformedEvent) eventKind() string { return "malformed" }
