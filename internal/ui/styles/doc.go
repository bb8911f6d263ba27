// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the kms-tui.
//
// A Theme bundles every lipgloss style the views need, built once for
// the configured palette (dark or light). Views never construct styles
// inline; they pull them from the Theme so the whole UI restyles from
// one place.
package styles
