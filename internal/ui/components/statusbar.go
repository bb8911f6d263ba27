// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/provana/kms-tui/internal/ui/styles"
	"github.com/provana/kms-tui/internal/util"
	"github.com/provana/kms-tui/internal/ws"
)

// StatusBar renders the single-line footer: connectivity indicator on the
// left, key hints on the right, padded to the full terminal width.
type StatusBar struct {
	Theme *styles.Theme
}

// statusGlyph maps a supervisor status to its indicator text.
func statusGlyph(status ws.Status) string {
	switch status {
	case ws.StatusConnected:
		return "● connected"
	case ws.StatusReconnecting:
		return "◌ reconnecting..."
	default:
		return "○ disconnected"
	}
}

// Render produces the status bar for the given width. Hints are dropped
// first when the terminal is too narrow for both halves.
func (b StatusBar) Render(width int, status ws.Status, user string, hints string) string {
	t := b.Theme

	var indicator string
	switch status {
	case ws.StatusConnected:
		indicator = t.StatusConnected.Render(statusGlyph(status))
	case ws.StatusReconnecting:
		indicator = t.StatusReconnecting.Render(statusGlyph(status))
	default:
		indicator = t.StatusDisconnected.Render(statusGlyph(status))
	}

	left := statusGlyph(status)
	if user != "" {
		left = fmt.Sprintf("%s  %s", left, user)
		indicator += t.StatusHint.Render("  " + user)
	}

	// Width accounting uses the unstyled text; ANSI sequences are
	// zero-width on screen but not in len().
	leftWidth := util.StringWidth(left)
	hintWidth := util.StringWidth(hints)
	inner := width - 2 // bar padding
	if inner < 0 {
		inner = 0
	}

	if hints != "" && leftWidth+2+hintWidth <= inner {
		gap := inner - leftWidth - hintWidth
		pad := util.PadWidth("", gap)
		return t.StatusBar.Render(indicator + pad + t.StatusHint.Render(hints))
	}
	pad := util.PadWidth("", inner-leftWidth)
	return t.StatusBar.Render(indicator + pad)
}
