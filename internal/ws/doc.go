// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws owns the single duplex connection to the KMS realtime backend.
//
// The Supervisor wraps one websocket connection at a time and implements the
// reconnect policy: any non-clean closure schedules a retry with exponential
// backoff up to a bounded attempt count, a clean closure (code 1000, ours or
// the server's) suppresses all reconnection, and exhausting the attempts
// parks the supervisor in the disconnected state until an explicit Open.
//
// Exactly one dial is in flight at any time. Inbound text frames and status
// transitions are delivered through caller-supplied callbacks.
package ws
