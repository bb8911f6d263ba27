// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the duplex text-frame wire contract with the KMS
// realtime backend and the decoder for inbound frames.
package protocol

import "encoding/json"

// inboundFrame is the superset wire shape of every inbound frame.
type inboundFrame struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Error     string `json:"error"`
}

// Decode parses one inbound text frame into a typed event.
//
// Frames that fail to parse, and frames whose kind is unrecognized with no
// error field, decode to MalformedEvent. The error field takes precedence
// over an unknown kind so backends that pair errors with custom types still
// surface them.
func Decode(data []byte) Event {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return MalformedEvent{Reason: "unparseable frame: " + err.Error()}
	}

	switch frame.Type {
	case KindStateUpdate:
		return StateUpdateEvent{Session: frame.SessionID, Status: frame.Content}
	case KindAnswerToken:
		return AnswerTokenEvent{Session: frame.SessionID, Token: frame.Content}
	case KindAnswer:
		return AnswerEvent{Session: frame.SessionID, Content: frame.Content}
	case KindClarificationNeeded:
		return ClarificationEvent{Session: frame.SessionID, Prompt: frame.Content}
	case KindEndOfAnswer:
		return EndOfAnswerEvent{Session: frame.SessionID}
	}

	if frame.Error != "" {
		return BackendErrorEvent{Session: frame.SessionID, Message: frame.Error}
	}

	return MalformedEvent{
		Session: frame.SessionID,
		Reason:  "unrecognized frame type " + quoteKind(frame.Type),
	}
}

func quoteKind(kind string) string {
	if kind == "" {
		return "(empty)"
	}
	return `"` + kind + `"`
}
