// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionstore mirrors conversation turns to the remote session
// store over HTTP+JSON.
//
// The Client implements the store wire API; the Synchronizer layers the
// conversation-facing operations on top of it: create-on-first-turn, append
// per turn, and the reconcile pass that overwrites a remote transcript that
// has fallen behind the locally known one. Remote-ahead-or-equal is a no-op
// so reconciliation never clobbers a healthy store.
package sessionstore
