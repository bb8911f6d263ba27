// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/provana/kms-tui/internal/gate"
)

func writeUsersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write users file: %v", err)
	}
	return path
}

func TestLoadGateValidFile(t *testing.T) {
	hash, err := gate.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	path := writeUsersFile(t, `
[[user]]
name = "alice"
password_hash = "`+hash+`"
`)

	g, err := loadGate(path)
	if err != nil {
		t.Fatalf("loadGate: %v", err)
	}
	if _, err := g.Login("alice", "hunter2"); err != nil {
		t.Errorf("configured user should log in: %v", err)
	}
	if _, err := g.Login("alice", "wrong"); err == nil {
		t.Error("wrong password should be rejected")
	}
}

func TestLoadGateRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no users", ""},
		{"missing hash", "[[user]]\nname = \"alice\"\n"},
		{"missing name", "[[user]]\npassword_hash = \"x\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeUsersFile(t, tt.content)
			if _, err := loadGate(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadGateMissingFile(t *testing.T) {
	if _, err := loadGate(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing credentials file should error")
	}
}
