// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/provana/kms-tui/internal/conversation"
	"github.com/provana/kms-tui/internal/model"
)

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.mode == modeLogin {
			return a.updateLogin(msg)
		}
		return a.updateChat(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case SnapshotMsg:
		a.applySnapshot(conversation.Snapshot(msg))
		return a, nil

	case loginResultMsg:
		a.loggingIn = false
		if msg.err != nil {
			a.loginErr = "Login failed. Check your username and password."
			a.loginPass.SetValue("")
			return a, nil
		}
		a.mode = modeChat
		a.loginErr = ""
		a.loginUser.Blur()
		a.loginPass.Blur()
		a.input.Focus()
		return a, a.loadSessions()

	case sessionsLoadedMsg:
		if msg.err == nil {
			a.sessions = msg.sessions
			if a.selected >= len(a.sessions) {
				a.selected = 0
			}
		}
		return a, nil

	case sessionOpenedMsg:
		if msg.err != nil {
			a.inputErr = "Could not load session: " + msg.err.Error()
			return a, nil
		}
		a.sidebarOpen = false
		a.applySnapshot(a.convo.View())
		return a, nil
	}

	return a, a.passthrough(msg)
}

// passthrough forwards unrecognized messages to the focused components.
func (a *App) passthrough(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

// =============================================================================
// LOGIN
// =============================================================================

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if a.loginUser.Focused() {
			a.loginUser.Blur()
			a.loginPass.Focus()
		} else {
			a.loginPass.Blur()
			a.loginUser.Focus()
		}
		return a, nil

	case tea.KeyEnter:
		if a.loginUser.Focused() {
			a.loginUser.Blur()
			a.loginPass.Focus()
			return a, nil
		}
		user := strings.TrimSpace(a.loginUser.Value())
		pass := a.loginPass.Value()
		if user == "" || pass == "" {
			a.loginErr = "Username and password are required."
			return a, nil
		}
		if a.loggingIn {
			return a, nil
		}
		a.loggingIn = true
		a.loginErr = ""
		a.user = user
		return a, a.doLogin(user, pass)
	}

	var cmd tea.Cmd
	if a.loginUser.Focused() {
		a.loginUser, cmd = a.loginUser.Update(msg)
	} else {
		a.loginPass, cmd = a.loginPass.Update(msg)
	}
	return a, cmd
}

func (a *App) doLogin(user, pass string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{err: a.store.Login(a.ctx, user, pass)}
	}
}

// =============================================================================
// CHAT
// =============================================================================

func (a *App) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.NewChat):
		a.convo.NewChat()
		a.applySnapshot(a.convo.View())
		a.inputErr = ""
		return a, a.loadSessions()

	case key.Matches(msg, a.keys.Sidebar):
		a.sidebarOpen = !a.sidebarOpen
		a.resize()
		if a.sidebarOpen {
			a.input.Blur()
			return a, a.loadSessions()
		}
		a.input.Focus()
		return a, nil
	}

	if a.sidebarOpen {
		return a.updateSidebar(msg)
	}

	if key.Matches(msg, a.keys.Submit) {
		return a.submit()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a *App) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Up):
		if a.selected > 0 {
			a.selected--
		}
		return a, nil
	case key.Matches(msg, a.keys.Down):
		if a.selected < len(a.sessions)-1 {
			a.selected++
		}
		return a, nil
	case key.Matches(msg, a.keys.Submit):
		if a.selected >= len(a.sessions) {
			return a, nil
		}
		id := a.sessions[a.selected].ID
		return a, func() tea.Msg {
			return sessionOpenedMsg{err: a.convo.LoadSession(a.ctx, id)}
		}
	}
	return a, nil
}

// submit routes the input line as a question or a clarification answer,
// depending on what the conversation is waiting for.
func (a *App) submit() (tea.Model, tea.Cmd) {
	text := a.input.Value()
	snap := a.convo.View()

	var err error
	if snap.ClarificationPending() {
		err = a.convo.AnswerClarification(a.ctx, text)
	} else {
		err = a.convo.AskQuestion(a.ctx, text)
	}

	switch {
	case err == nil:
		a.input.SetValue("")
		a.inputErr = ""
	case errors.Is(err, conversation.ErrEmptyInput):
		// Nothing to say about an empty line.
	case errors.Is(err, conversation.ErrBusy):
		a.inputErr = "Still working on the previous question."
	case errors.Is(err, conversation.ErrOffline):
		a.inputErr = "Not connected. Your question was not sent."
	default:
		a.inputErr = err.Error()
	}

	a.applySnapshot(a.convo.View())
	return a, nil
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// applySnapshot swaps in a new conversation snapshot and re-renders the
// transcript, pinning the viewport to the newest content.
func (a *App) applySnapshot(snap conversation.Snapshot) {
	a.snapshot = snap
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

func (a *App) resize() {
	a.viewport.Width = a.width
	if a.sidebarOpen {
		a.viewport.Width = a.width - sidebarWidth
	}
	// Header, status bar, input container, thinking line.
	h := a.height - 6
	if h < 3 {
		h = 3
	}
	a.viewport.Height = h
	a.input.Width = a.viewport.Width - 6
	a.rebuildMarkdown()
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

func (a *App) loadSessions() tea.Cmd {
	user := a.user
	return func() tea.Msg {
		sessions, err := a.store.List(a.ctx, user)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

// Sessions returns the loaded sidebar entries.
func (a *App) Sessions() []model.SessionMeta {
	return a.sessions
}
