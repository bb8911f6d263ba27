// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the duplex text-frame wire contract with the KMS
// realtime backend and the decoder for inbound frames.
package protocol

import "encoding/json"

// =============================================================================
// OUTBOUND FRAMES
// =============================================================================

// QuestionFrame is the outbound frame for a new question.
type QuestionFrame struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	// PredefinedDimensions scopes retrieval on the backend, keyed by
	// dimension name (e.g. ClientName).
	PredefinedDimensions map[string][]string `json:"predefined_dimensions"`
}

// NewQuestionFrame builds a question frame scoped to the given client name.
func NewQuestionFrame(sessionID, question, clientName string) QuestionFrame {
	return QuestionFrame{
		SessionID: sessionID,
		Question:  question,
		PredefinedDimensions: map[string][]string{
			"ClientName": {clientName},
		},
	}
}

// Encode serializes the frame for the wire.
func (f QuestionFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// ClarificationFrame is the outbound frame answering a pending
// clarification prompt.
type ClarificationFrame struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// Encode serializes the frame for the wire.
func (f ClarificationFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
