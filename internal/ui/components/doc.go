// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides small self-contained render helpers shared by
// the chat views: the connectivity status bar and the session sidebar list.
//
// Components are pure functions from state to string. They hold no bubbletea
// state of their own; the chat model owns all state and calls these at
// render time with the current theme and width.
package components
