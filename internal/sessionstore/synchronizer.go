// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionstore mirrors conversation turns to the remote session
// store over HTTP+JSON.
package sessionstore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/provana/kms-tui/internal/model"
)

// =============================================================================
// SYNCHRONIZER
// =============================================================================

// Synchronizer implements the conversation-facing persistence operations on
// top of a Store. Every method operates on the snapshot arguments it is
// handed; none of them reads live conversation state.
type Synchronizer struct {
	store Store
}

// NewSynchronizer creates a synchronizer over the given store.
func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// EnsureSession creates the remote session for the active conversation with
// its first user turn. The title derives from the first question.
func (s *Synchronizer) EnsureSession(ctx context.Context, user, sessionID, title string, firstTurn model.Turn) error {
	session := model.Session{
		SessionID: sessionID,
		User:      user,
		Title:     title,
		Turns:     []model.Turn{firstTurn},
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.store.Create(ctx, session)
	return err
}

// AppendTurn persists one turn by appending it to the session.
func (s *Synchronizer) AppendTurn(ctx context.Context, sessionID, user string, turn model.Turn) error {
	_, err := s.store.Append(ctx, sessionID, user, turn)
	return err
}

// Reconcile is the self-healing pass after each finalized assistant turn.
// If the remote transcript has strictly fewer turns than the local snapshot
// (a dropped append), the remote list is replaced wholesale; remote at or
// ahead of local is a no-op so a healthy store is never overwritten. A
// session the store has never seen (a dropped create) is created from the
// full snapshot.
func (s *Synchronizer) Reconcile(ctx context.Context, sessionID, user string, turns []model.Turn) error {
	remote, err := s.store.Get(ctx, user, sessionID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[sync] session %s missing remotely, recreating with %d turns", sessionID, len(turns))
		title := ""
		if len(turns) > 0 {
			title = model.DeriveTitle(turns[0].Content)
		}
		_, err = s.store.Create(ctx, model.Session{
			SessionID: sessionID,
			User:      user,
			Title:     title,
			Turns:     turns,
			CreatedAt: time.Now().UTC(),
		})
		return err
	}
	if err != nil {
		return err
	}

	if remote.TurnCount() >= len(turns) {
		return nil
	}

	log.Printf("[sync] remote session %s behind (%d < %d turns), replacing",
		sessionID, remote.TurnCount(), len(turns))
	_, err = s.store.ReplaceAll(ctx, sessionID, user, turns)
	return err
}

// LoadSession fetches a stored session's turns for transcript replacement.
func (s *Synchronizer) LoadSession(ctx context.Context, user, sessionID string) ([]model.Turn, error) {
	session, err := s.store.Get(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Turns, nil
}

// ListSessions returns the user's stored sessions, newest first.
func (s *Synchronizer) ListSessions(ctx context.Context, user string) ([]model.SessionMeta, error) {
	return s.store.List(ctx, user)
}
