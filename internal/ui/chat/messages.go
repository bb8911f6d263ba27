// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/provana/kms-tui/internal/conversation"
	"github.com/provana/kms-tui/internal/model"
)

// SnapshotMsg carries a fresh conversation snapshot into the update loop.
// The outer program sends one from the controller's OnChange callback.
type SnapshotMsg conversation.Snapshot

// loginResultMsg reports the outcome of an async login attempt.
type loginResultMsg struct {
	err error
}

// sessionsLoadedMsg carries the refreshed sidebar listing.
type sessionsLoadedMsg struct {
	sessions []model.SessionMeta
	err      error
}

// sessionOpenedMsg reports the outcome of loading a stored session.
type sessionOpenedMsg struct {
	err error
}
