// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/provana/kms-tui/internal/model"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when a session lookup matches no row.
var ErrSessionNotFound = errors.New("session not found")

// =============================================================================
// DATABASE HANDLE
// =============================================================================

// SessionDB is the SQLite-backed session database.
type SessionDB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the session database at dbPath.
func Open(dbPath string) (*SessionDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// RELIABILITY: WAL mode lets a listing read proceed while a
	// replace-all transaction is in flight.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SessionDB{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SessionDB) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user, created_at);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (session_id, position)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SessionDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SessionDB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// CreateSession inserts a session row plus its initial turns. Creating a
// session that already exists replaces its turns, which makes client
// retries after a lost response harmless. SECURITY: the retry path only
// applies to the owning user; a session id held by another user reports
// ErrSessionNotFound, same as any other cross-user lookup.
func (s *SessionDB) CreateSession(ctx context.Context, session model.Session) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT user FROM sessions WHERE session_id = ?`, session.SessionID,
	).Scan(&owner)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, user, title, created_at)
			VALUES (?, ?, ?, ?)`,
			session.SessionID, session.User, session.Title, createdAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	case err != nil:
		return fmt.Errorf("check session owner: %w", err)
	case owner != session.User:
		return ErrSessionNotFound
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET title = ? WHERE session_id = ?`,
			session.Title, session.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	}

	if err := replaceTurnsTx(ctx, tx, session.SessionID, session.Turns); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// AppendTurn appends one turn to the end of a session's transcript.
func (s *SessionDB) AppendTurn(ctx context.Context, sessionID, user string, turn model.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExistsTx(ctx, tx, sessionID, user); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, position, role, content)
		SELECT ?, COALESCE(MAX(position), -1) + 1, ?, ?
		FROM turns WHERE session_id = ?`,
		sessionID, string(turn.Role), turn.Content, sessionID,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	return nil
}

// ReplaceTurns swaps a session's entire transcript for the provided turns
// in a single transaction.
func (s *SessionDB) ReplaceTurns(ctx context.Context, sessionID, user string, turns []model.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace turns: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExistsTx(ctx, tx, sessionID, user); err != nil {
		return err
	}

	if err := replaceTurnsTx(ctx, tx, sessionID, turns); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace turns: %w", err)
	}
	return nil
}

func replaceTurnsTx(ctx context.Context, tx *sql.Tx, sessionID string, turns []model.Turn) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	for i, turn := range turns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, position, role, content)
			VALUES (?, ?, ?, ?)`,
			sessionID, i, string(turn.Role), turn.Content,
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}
	return nil
}

func sessionExistsTx(ctx context.Context, tx *sql.Tx, sessionID, user string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE session_id = ? AND user = ?`,
		sessionID, user,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// GetSession loads one session with its full ordered transcript.
func (s *SessionDB) GetSession(ctx context.Context, user, sessionID string) (model.Session, error) {
	var session model.Session
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user, title, created_at
		FROM sessions WHERE session_id = ? AND user = ?`,
		sessionID, user,
	).Scan(&session.SessionID, &session.User, &session.Title, &createdAt)
	if err == sql.ErrNoRows {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("scan session row: %w", err)
	}
	session.CreatedAt = time.Unix(createdAt, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM turns
		WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return model.Session{}, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	session.Turns = []model.Turn{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return model.Session{}, fmt.Errorf("scan turn row: %w", err)
		}
		session.Turns = append(session.Turns, model.Turn{Role: model.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, fmt.Errorf("iterate turns: %w", err)
	}

	return session, nil
}

// ListSessions returns metadata for a user's sessions, newest first.
// The first user turn doubles as a fallback label for sessions created
// before titles were stored.
func (s *SessionDB) ListSessions(ctx context.Context, user string) ([]model.SessionMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.title, s.created_at,
		       COALESCE((SELECT content FROM turns
		                 WHERE session_id = s.session_id AND role = 'user'
		                 ORDER BY position LIMIT 1), '')
		FROM sessions s
		WHERE s.user = ?
		ORDER BY s.created_at DESC, s.session_id DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	metas := []model.SessionMeta{}
	for rows.Next() {
		var meta model.SessionMeta
		var createdAt int64
		if err := rows.Scan(&meta.ID, &meta.Title, &createdAt, &meta.FirstMessage); err != nil {
			return nil, fmt.Errorf("scan session meta: %w", err)
		}
		meta.CreatedAt = time.Unix(createdAt, 0)
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return metas, nil
}
