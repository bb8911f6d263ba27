// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives the visible transcript from decoded protocol
// events and local user actions.
//
// The Controller is the single writer of conversation state: the transcript,
// the transient thinking and typing indicators, the optional pending
// clarification, and the processing lock. Inbound events are applied in
// arrival order; events carrying a session identifier other than the active
// one are discarded (stale-session guard), so late frames from an abandoned
// session can never corrupt the active transcript.
//
// Persistence is deliberately fire-and-forget: every store call receives a
// snapshot of the relevant turns taken at call time, and failures are logged
// without blocking the live token stream. The periodic reconcile pass after
// each finalized assistant turn repairs any drift.
package conversation
