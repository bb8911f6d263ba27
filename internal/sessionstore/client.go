// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionstore mirrors conversation turns to the remote session
// store over HTTP+JSON.
package sessionstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/provana/kms-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrNotFound is returned when the store has no matching session.
var ErrNotFound = errors.New("sessionstore: session not found")

// ClientError represents a failed store call.
type ClientError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	msg := "sessionstore: " + e.Op + " failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the session store wire API consumed by the synchronizer.
type Store interface {
	Create(ctx context.Context, session model.Session) (*model.Session, error)
	Get(ctx context.Context, user, sessionID string) (*model.Session, error)
	List(ctx context.Context, user string) ([]model.SessionMeta, error)
	Append(ctx context.Context, sessionID, user string, turn model.Turn) (*model.Session, error)
	ReplaceAll(ctx context.Context, sessionID, user string, turns []model.Turn) (*model.Session, error)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the store client.
type ClientConfig struct {
	// BaseURL of the session store API (default: http://127.0.0.1:8790).
	BaseURL string

	// Timeout per store call (default: 10s).
	Timeout time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8790",
		Timeout: 10 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the session store over HTTP+JSON. Safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a store client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

// NewClientWithConfig creates a store client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8790"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Login exchanges credentials for a gate token and attaches it to all
// subsequent store calls.
func (c *Client) Login(ctx context.Context, user, password string) error {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{user, password}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, body, &resp); err != nil {
		return err
	}

	c.SetToken(resp.Token)
	return nil
}

// SetToken attaches a previously obtained gate token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// =============================================================================
// STORE OPERATIONS
// =============================================================================

// Create persists a new session. The client supplies the identifier so the
// realtime backend can reference the session before the store has seen it.
func (c *Client) Create(ctx context.Context, session model.Session) (*model.Session, error) {
	body := struct {
		SessionID string       `json:"sessionId,omitempty"`
		User      string       `json:"user"`
		Title     string       `json:"title"`
		Turns     []model.Turn `json:"turns"`
	}{session.SessionID, session.User, session.Title, session.Turns}

	var created model.Session
	if err := c.do(ctx, http.MethodPost, "/api/session", nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Get fetches one session by identifier.
func (c *Client) Get(ctx context.Context, user, sessionID string) (*model.Session, error) {
	query := url.Values{"user": {user}, "sessionId": {sessionID}}

	var session model.Session
	if err := c.do(ctx, http.MethodGet, "/api/session", query, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns the user's session summaries, newest first.
func (c *Client) List(ctx context.Context, user string) ([]model.SessionMeta, error) {
	query := url.Values{"user": {user}}

	var metas []model.SessionMeta
	if err := c.do(ctx, http.MethodGet, "/api/sessions", query, nil, &metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// Append adds one turn to a session and returns the updated session.
func (c *Client) Append(ctx context.Context, sessionID, user string, turn model.Turn) (*model.Session, error) {
	body := struct {
		SessionID string     `json:"sessionId"`
		User      string     `json:"user"`
		Turn      model.Turn `json:"turn"`
	}{sessionID, user, turn}

	var updated model.Session
	if err := c.do(ctx, http.MethodPut, "/api/session", nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReplaceAll swaps the session's full turn list.
func (c *Client) ReplaceAll(ctx context.Context, sessionID, user string, turns []model.Turn) (*model.Session, error) {
	body := struct {
		SessionID string       `json:"sessionId"`
		User      string       `json:"user"`
		Turns     []model.Turn `json:"turns"`
	}{sessionID, user, turns}

	var updated model.Session
	if err := c.do(ctx, http.MethodPost, "/api/session/replace-all", nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// do performs one JSON round trip against the store API.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ClientError{Op: method + " " + path, Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &ClientError{Op: method + " " + path, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Op: method + " " + path, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ClientError{
			Op:         method + " " + path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Op: method + " " + path, Message: "invalid response body", Cause: err}
	}
	return nil
}

// errorMessage extracts the store's {"error": ...} body when present.
func errorMessage(data []byte, statusCode int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(statusCode)
}
