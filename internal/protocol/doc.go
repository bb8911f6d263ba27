// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the duplex text-frame wire contract with the KMS
// realtime backend and the decoder for inbound frames.
//
// The inbound protocol is represented as a closed set of typed event
// variants, one per frame kind, plus an explicit Malformed variant for
// frames that fail to parse. Decode never panics and never returns an error
// to the read loop: a bad frame becomes a local event the conversation
// layer can surface, and the connection stays open.
package protocol
