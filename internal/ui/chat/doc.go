// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the bubbletea terminal interface: a login view
// gating access to the conversation view with its transcript viewport,
// input line, session sidebar, and connectivity status bar.
//
// The package renders conversation.Snapshot values and never mutates
// conversation state directly; every user action routes through the
// controller, and every async state change arrives as a SnapshotMsg
// delivered via program.Send.
package chat
