// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/provana/kms-tui/internal/conversation"
	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/ui/components"
	"github.com/provana/kms-tui/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Store is the slice of the session store client the interface needs:
// authentication and the sidebar listing. Satisfied by *sessionstore.Client.
type Store interface {
	Login(ctx context.Context, user, password string) error
	List(ctx context.Context, user string) ([]model.SessionMeta, error)
}

// mode selects which top-level view is active.
type mode int

const (
	modeLogin mode = iota
	modeChat
)

const (
	sidebarWidth  = 28
	defaultWidth  = 80
	defaultHeight = 24
)

// =============================================================================
// APP MODEL
// =============================================================================

// App is the root bubbletea model.
type App struct {
	ctx     context.Context
	theme   *styles.Theme
	keys    keyMap
	convo   *conversation.Controller
	store   Store
	user    string
	version string

	mode   mode
	width  int
	height int

	// Chat view state.
	snapshot    conversation.Snapshot
	viewport    viewport.Model
	input       textinput.Model
	spin        spinner.Model
	statusBar   components.StatusBar
	sessionList components.SessionList
	inputErr    string

	// Markdown rendering for finalized assistant messages. Nil disables it.
	markdown *glamour.TermRenderer
	useMarkdown bool

	// Sidebar state.
	sidebarOpen bool
	sessions    []model.SessionMeta
	selected    int

	// Login view state.
	loginUser textinput.Model
	loginPass textinput.Model
	loginErr  string
	loggingIn bool
}

// Options configures the app.
type Options struct {
	User     string
	Theme    string
	Markdown bool
	Version  string

	// SkipLogin starts directly in the chat view. Used when credentials
	// came from the environment instead of the login form.
	SkipLogin bool
}

// New builds the root model. The context bounds every store call the
// interface makes; cancel it to abort in-flight loads on shutdown.
func New(ctx context.Context, convo *conversation.Controller, store Store, opts Options) *App {
	theme := styles.New(opts.Theme)

	input := textinput.New()
	input.Placeholder = "Ask a question..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 4000

	loginUser := textinput.New()
	loginUser.Placeholder = "username"
	loginUser.CharLimit = 64
	loginUser.SetValue(opts.User)

	loginPass := textinput.New()
	loginPass.Placeholder = "password"
	loginPass.CharLimit = 128
	loginPass.EchoMode = textinput.EchoPassword
	loginPass.EchoCharacter = '•'

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	app := &App{
		ctx:         ctx,
		theme:       theme,
		keys:        defaultKeyMap(),
		convo:       convo,
		store:       store,
		user:        opts.User,
		version:     opts.Version,
		width:       defaultWidth,
		height:      defaultHeight,
		viewport:    viewport.New(defaultWidth, defaultHeight-4),
		input:       input,
		spin:        sp,
		statusBar:   components.StatusBar{Theme: theme},
		sessionList: components.SessionList{Theme: theme},
		useMarkdown: opts.Markdown,
		loginUser:   loginUser,
		loginPass:   loginPass,
		snapshot:    convo.View(),
	}

	if opts.SkipLogin {
		app.mode = modeChat
		app.input.Focus()
	} else {
		app.mode = modeLogin
		app.loginUser.Focus()
	}
	return app
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, a.spin.Tick}
	if a.mode == modeChat {
		cmds = append(cmds, a.loadSessions())
	}
	return tea.Batch(cmds...)
}

// rebuildMarkdown sizes the glamour renderer to the current viewport.
// Renderer construction can fail on exotic terminals; markdown then
// degrades to plain text rather than blocking the interface.
func (a *App) rebuildMarkdown() {
	if !a.useMarkdown {
		a.markdown = nil
		return
	}
	style := "dark"
	if a.theme.Name == "light" {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(a.transcriptWidth()),
	)
	if err != nil {
		a.markdown = nil
		return
	}
	a.markdown = r
}

// transcriptWidth is the usable column count of the transcript viewport.
func (a *App) transcriptWidth() int {
	w := a.width
	if a.sidebarOpen {
		w -= sidebarWidth
	}
	w -= 4 // viewport padding
	if w < 20 {
		w = 20
	}
	return w
}
