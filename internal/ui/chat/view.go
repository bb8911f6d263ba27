// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/provana/kms-tui/internal/model"
)

// View implements tea.Model.
func (a *App) View() string {
	if a.mode == modeLogin {
		return a.viewLogin()
	}
	return a.viewChat()
}

// =============================================================================
// LOGIN VIEW
// =============================================================================

func (a *App) viewLogin() string {
	t := a.theme
	var b strings.Builder

	b.WriteString(t.LoginTitle.Render("Provana KMS"))
	b.WriteString("\n\n")
	b.WriteString(t.LoginLabel.Render("Username"))
	b.WriteString("\n")
	b.WriteString(a.loginUser.View())
	b.WriteString("\n\n")
	b.WriteString(t.LoginLabel.Render("Password"))
	b.WriteString("\n")
	b.WriteString(a.loginPass.View())

	if a.loggingIn {
		b.WriteString("\n\n")
		b.WriteString(a.spin.View() + t.ThinkingText.Render(" signing in..."))
	} else if a.loginErr != "" {
		b.WriteString("\n\n")
		b.WriteString(t.LoginError.Render(a.loginErr))
	}

	box := t.LoginBox.Render(b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// CHAT VIEW
// =============================================================================

func (a *App) viewChat() string {
	t := a.theme

	title := t.HeaderTitle.Render("Provana KMS")
	if a.version != "" {
		title += t.SidebarDate.Render("  v" + a.version)
	}
	header := t.Header.Width(a.width).Render(title)

	body := a.viewport.View()
	if a.sidebarOpen {
		sidebar := t.SidebarBox.Height(a.viewport.Height).Render(
			a.sessionList.Render(sidebarWidth-4, a.viewport.Height, a.sessions, a.selected),
		)
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, body)
	}

	activity := a.viewActivity()
	input := a.viewInput()
	status := a.statusBar.Render(a.width, a.snapshot.Status, a.user, a.keys.hints())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, activity, input, status)
}

// viewActivity is the one-line strip between transcript and input: the
// thinking narration, the typing indicator, or an input error.
func (a *App) viewActivity() string {
	t := a.theme
	switch {
	case a.inputErr != "":
		return " " + t.SystemError.Render(a.inputErr)
	case a.snapshot.Thinking != "":
		return " " + a.spin.View() + t.ThinkingText.Render(" "+a.snapshot.Thinking)
	case a.snapshot.Typing:
		return " " + a.spin.View() + t.ThinkingText.Render(" thinking...")
	default:
		return ""
	}
}

func (a *App) viewInput() string {
	t := a.theme
	if a.sidebarOpen {
		return t.InputContainer.Width(a.width).Render(
			t.InputLocked.Render("↑/↓ select · enter open · ctrl+s close"),
		)
	}
	if a.snapshot.ClarificationPending() {
		tag := t.ClarificationTag.Render("[clarification] ")
		return t.InputContainer.Width(a.width).Render(tag + a.input.View())
	}
	return t.InputContainer.Width(a.width).Render(a.input.View())
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderTranscript converts the snapshot's visible messages into the
// viewport content string.
func (a *App) renderTranscript() string {
	t := a.theme
	width := a.transcriptWidth()
	var parts []string

	for _, msg := range a.snapshot.Messages {
		switch msg.Role {
		case model.RoleUser:
			label := t.UserLabel.Render(msg.Role.DisplayName())
			body := t.MessageBody.Width(width).Render(msg.DisplayContent())
			parts = append(parts, label+"\n"+body)

		case model.RoleAssistant:
			label := t.AssistantLabel.Render(msg.Role.DisplayName())
			parts = append(parts, label+"\n"+a.renderAssistant(msg, width))

		case model.RoleSystem:
			parts = append(parts, a.renderNotice(msg, width))
		}
	}

	return strings.Join(parts, "\n\n")
}

// renderAssistant renders one assistant message. Markdown applies only to
// closed messages; a streaming body changes every token and re-rendering
// markdown per token is both slow and visually unstable.
func (a *App) renderAssistant(msg *model.VisibleMessage, width int) string {
	t := a.theme
	content := msg.DisplayContent()
	if msg.IsOpen() {
		return t.MessageBody.Width(width).Render(content) + t.StreamingCursor.Render("▌")
	}
	if a.markdown != nil {
		if out, err := a.markdown.Render(content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return t.MessageBody.Width(width).Render(content)
}

// renderNotice renders a system notice with its display class style.
func (a *App) renderNotice(msg *model.VisibleMessage, width int) string {
	t := a.theme
	var style = t.SystemInfo
	switch msg.Class {
	case model.ClassWarning:
		style = t.SystemWarning
	case model.ClassError:
		style = t.SystemError
	}
	return style.Width(width).Render("· " + msg.DisplayContent())
}
