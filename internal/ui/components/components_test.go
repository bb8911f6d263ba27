// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/ui/styles"
	"github.com/provana/kms-tui/internal/ws"
)

func testTheme() *styles.Theme {
	return styles.New("dark")
}

func TestStatusBarIndicators(t *testing.T) {
	bar := StatusBar{Theme: testTheme()}
	tests := []struct {
		name   string
		status ws.Status
		want   string
	}{
		{"connected", ws.StatusConnected, "connected"},
		{"reconnecting", ws.StatusReconnecting, "reconnecting"},
		{"disconnected", ws.StatusDisconnected, "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := bar.Render(80, tt.status, "alice", "ctrl+c quit")
			if !strings.Contains(out, tt.want) {
				t.Errorf("status bar missing %q in %q", tt.want, out)
			}
		})
	}
}

func TestStatusBarShowsUserAndHints(t *testing.T) {
	bar := StatusBar{Theme: testTheme()}
	out := bar.Render(80, ws.StatusConnected, "alice", "ctrl+n new chat")
	if !strings.Contains(out, "alice") {
		t.Error("status bar missing user")
	}
	if !strings.Contains(out, "ctrl+n new chat") {
		t.Error("status bar missing hints")
	}
}

func TestStatusBarDropsHintsWhenNarrow(t *testing.T) {
	bar := StatusBar{Theme: testTheme()}
	out := bar.Render(20, ws.StatusConnected, "", "ctrl+n new chat  ctrl+c quit")
	if strings.Contains(out, "ctrl+n") {
		t.Error("hints should be dropped on a narrow terminal")
	}
}

func TestSessionListEmpty(t *testing.T) {
	list := SessionList{Theme: testTheme()}
	out := list.Render(30, 10, nil, 0)
	if !strings.Contains(out, "no sessions yet") {
		t.Errorf("empty list placeholder missing: %q", out)
	}
}

func TestSessionListSelection(t *testing.T) {
	list := SessionList{Theme: testTheme()}
	sessions := []model.SessionMeta{
		{ID: "a", Title: "First chat", CreatedAt: time.Now()},
		{ID: "b", Title: "Second chat", CreatedAt: time.Now()},
		{ID: "c", FirstMessage: "how do I rotate keys", CreatedAt: time.Now()},
	}
	out := list.Render(30, 10, sessions, 1)
	if !strings.Contains(out, "> Second chat") {
		t.Errorf("selected entry missing cursor: %q", out)
	}
	if !strings.Contains(out, "how do I rotate keys") {
		t.Error("FirstMessage fallback missing from list")
	}
}

func TestSessionListScrollsToSelection(t *testing.T) {
	list := SessionList{Theme: testTheme()}
	var sessions []model.SessionMeta
	for _, title := range []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"} {
		sessions = append(sessions, model.SessionMeta{ID: title, Title: title})
	}
	// Height 5 leaves 3 visible rows; selecting the last entry must
	// still render it.
	out := list.Render(30, 5, sessions, 7)
	if !strings.Contains(out, "> s7") {
		t.Errorf("selected entry scrolled out of view: %q", out)
	}
	if strings.Contains(out, "s0") {
		t.Error("top entry should have scrolled out of view")
	}
}

func TestSessionListTruncatesLongTitles(t *testing.T) {
	list := SessionList{Theme: testTheme()}
	long := strings.Repeat("x", 100)
	out := list.Render(20, 10, []model.SessionMeta{{ID: "a", Title: long}}, 0)
	for _, line := range strings.Split(out, "\n") {
		if strings.Count(line, "x") > 20 {
			t.Errorf("title not truncated: %q", line)
		}
	}
}
