// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions, turns, and the
// client-local visible transcript.
//
// A Turn is one durable role-tagged message inside a Session; the Session is
// owned by the remote store and the client holds a cached copy. A
// VisibleMessage is the transient client-side rendering of a Turn or a local
// system notice. The Transcript tracks the ordered visible messages and the
// at-most-one "open" assistant message that is still accumulating streamed
// tokens.
package model
