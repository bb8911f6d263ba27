// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the SQLite-backed session database used by
// kms-sessiond.
//
// Sessions and their turns live in two tables. Turn ordering is kept
// with an explicit position column so replace-all writes stay stable
// regardless of insertion order.
//
// # Key Types
//
//   - SessionDB: SQLite handle with the session CRUD operations
//   - ErrSessionNotFound: sentinel for lookups on unknown sessions
//
// # Usage
//
// Open a database and create a session:
//
//	db, err := storage.Open(dbPath)
//	err = db.CreateSession(ctx, session)
//
// Load and list:
//
//	session, err := db.GetSession(ctx, user, sessionID)
//	metas, err := db.ListSessions(ctx, user)
package storage
