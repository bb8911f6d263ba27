// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/ui/styles"
	"github.com/provana/kms-tui/internal/util"
)

// SessionList renders the sidebar of past sessions, newest first, with a
// cursor over the selected entry.
type SessionList struct {
	Theme *styles.Theme
}

// Render produces the sidebar content for the given inner width and height.
// Scrolling keeps the selected entry visible; entries beyond the viewport
// are simply not drawn.
func (l SessionList) Render(width, height int, sessions []model.SessionMeta, selected int) string {
	t := l.Theme
	var b strings.Builder

	b.WriteString(t.SidebarTitle.Render("Sessions"))
	b.WriteString("\n")

	if len(sessions) == 0 {
		b.WriteString(t.SidebarDate.Render("no sessions yet"))
		return b.String()
	}

	visible := height - 2 // title + spacer
	if visible < 1 {
		visible = 1
	}
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	end := start + visible
	if end > len(sessions) {
		end = len(sessions)
	}

	for i := start; i < end; i++ {
		meta := sessions[i]
		label := util.TruncateWidth(meta.DisplayTitle(), width-2)
		line := "  " + label
		if i == selected {
			line = "> " + label
			b.WriteString("\n" + t.SidebarSelected.Render(util.PadWidth(line, width)))
			continue
		}
		b.WriteString("\n" + t.SidebarItem.Render(line))
	}

	return b.String()
}
