// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// COLOR PALETTES
// =============================================================================

// Palette holds the raw colors a theme is built from.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	UserFg     lipgloss.Color
	Info       lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
	StatusBg   lipgloss.Color
	SelectedBg lipgloss.Color
}

// DarkPalette is the default palette.
func DarkPalette() Palette {
	return Palette{
		Primary:    lipgloss.Color("86"),  // cyan
		Secondary:  lipgloss.Color("135"), // purple
		Text:       lipgloss.Color("252"),
		Muted:      lipgloss.Color("243"),
		UserFg:     lipgloss.Color("39"), // blue
		Info:       lipgloss.Color("42"),
		Warning:    lipgloss.Color("214"),
		Error:      lipgloss.Color("196"),
		Border:     lipgloss.Color("238"),
		StatusBg:   lipgloss.Color("236"),
		SelectedBg: lipgloss.Color("237"),
	}
}

// LightPalette mirrors DarkPalette for light terminals.
func LightPalette() Palette {
	return Palette{
		Primary:    lipgloss.Color("30"),
		Secondary:  lipgloss.Color("91"),
		Text:       lipgloss.Color("235"),
		Muted:      lipgloss.Color("245"),
		UserFg:     lipgloss.Color("27"),
		Info:       lipgloss.Color("28"),
		Warning:    lipgloss.Color("130"),
		Error:      lipgloss.Color("124"),
		Border:     lipgloss.Color("250"),
		StatusBg:   lipgloss.Color("254"),
		SelectedBg: lipgloss.Color("253"),
	}
}

// =============================================================================
// THEME
// =============================================================================

// Theme holds all the styled components for the application.
type Theme struct {
	Name string

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	// Message labels and bodies
	UserLabel        lipgloss.Style
	AssistantLabel   lipgloss.Style
	MessageBody      lipgloss.Style
	StreamingCursor  lipgloss.Style
	SystemInfo       lipgloss.Style
	SystemWarning    lipgloss.Style
	SystemError      lipgloss.Style
	Clarification    lipgloss.Style
	ClarificationTag lipgloss.Style

	// Thinking line
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	InputLocked    lipgloss.Style

	// Status bar
	StatusBar          lipgloss.Style
	StatusConnected    lipgloss.Style
	StatusReconnecting lipgloss.Style
	StatusDisconnected lipgloss.Style
	StatusHint         lipgloss.Style

	// Session sidebar
	SidebarBox      lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarDate     lipgloss.Style

	// Login view
	LoginBox    lipgloss.Style
	LoginTitle  lipgloss.Style
	LoginLabel  lipgloss.Style
	LoginError  lipgloss.Style
}

// New builds a theme for the named palette. Unknown names fall back to
// dark.
func New(name string) *Theme {
	var p Palette
	switch strings.ToLower(name) {
	case "light":
		p = LightPalette()
	default:
		name = "dark"
		p = DarkPalette()
	}

	t := &Theme{Name: name}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(p.Border).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(p.UserFg)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	t.MessageBody = lipgloss.NewStyle().Foreground(p.Text)
	t.StreamingCursor = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	t.SystemInfo = lipgloss.NewStyle().Foreground(p.Info).Italic(true)
	t.SystemWarning = lipgloss.NewStyle().Foreground(p.Warning).Italic(true)
	t.SystemError = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	t.Clarification = lipgloss.NewStyle().
		Foreground(p.Secondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(p.Secondary).
		PaddingLeft(1)
	t.ClarificationTag = lipgloss.NewStyle().Bold(true).Foreground(p.Secondary)

	t.Spinner = lipgloss.NewStyle().Foreground(p.Primary)
	t.ThinkingText = lipgloss.NewStyle().Foreground(p.Muted).Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(p.Border).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	t.InputLocked = lipgloss.NewStyle().Foreground(p.Muted).Italic(true)

	t.StatusBar = lipgloss.NewStyle().Background(p.StatusBg).Foreground(p.Text).Padding(0, 1)
	t.StatusConnected = lipgloss.NewStyle().Background(p.StatusBg).Foreground(p.Info).Bold(true)
	t.StatusReconnecting = lipgloss.NewStyle().Background(p.StatusBg).Foreground(p.Warning).Bold(true)
	t.StatusDisconnected = lipgloss.NewStyle().Background(p.StatusBg).Foreground(p.Error).Bold(true)
	t.StatusHint = lipgloss.NewStyle().Background(p.StatusBg).Foreground(p.Muted)

	t.SidebarBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(p.Border).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Bold(true).Foreground(p.Secondary)
	t.SidebarItem = lipgloss.NewStyle().Foreground(p.Text)
	t.SidebarSelected = lipgloss.NewStyle().Background(p.SelectedBg).Foreground(p.Primary).Bold(true)
	t.SidebarDate = lipgloss.NewStyle().Foreground(p.Muted)

	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(1, 3)
	t.LoginTitle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	t.LoginLabel = lipgloss.NewStyle().Foreground(p.Muted)
	t.LoginError = lipgloss.NewStyle().Foreground(p.Error)

	return t
}
