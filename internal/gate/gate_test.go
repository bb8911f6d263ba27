// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	return New([]Credential{{User: "alice", PasswordHash: hash}})
}

func TestLoginIssuesToken(t *testing.T) {
	g := newTestGate(t)

	token, err := g.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if !strings.HasPrefix(token, "kms_") {
		t.Errorf("token = %q, want kms_ prefix", token)
	}

	user, err := g.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	g := newTestGate(t)

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "mallory", "hunter2"},
		{"empty password", "alice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Login(tt.user, tt.password)
			if !errors.Is(err, ErrBadCredentials) {
				t.Errorf("Login() = %v, want ErrBadCredentials", err)
			}
		})
	}
}

func TestValidateExpiredToken(t *testing.T) {
	g := newTestGate(t)

	token, err := g.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	g.now = func() time.Time { return time.Now().Add(TokenLifetime + time.Minute) }

	if _, err := g.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Validate() after expiry = %v, want ErrTokenInvalid", err)
	}

	// Expiry evicts the record, so even restoring the clock cannot revive it.
	g.now = time.Now
	if _, err := g.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Validate() after eviction = %v, want ErrTokenInvalid", err)
	}
}

func TestRevoke(t *testing.T) {
	g := newTestGate(t)

	token, _ := g.Login("alice", "hunter2")
	g.Revoke(token)

	if _, err := g.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Validate() after revoke = %v, want ErrTokenInvalid", err)
	}
}

func TestMiddleware(t *testing.T) {
	g := newTestGate(t)
	token, _ := g.Login("alice", "hunter2")

	var gotUser string
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
	}))

	t.Run("bearer header", func(t *testing.T) {
		gotUser = ""
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if gotUser != "alice" {
			t.Errorf("context user = %q, want alice", gotUser)
		}
	})

	t.Run("cookie", func(t *testing.T) {
		gotUser = ""
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.AddCookie(&http.Cookie{Name: "kms_token", Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if gotUser != "alice" {
			t.Errorf("context user = %q, want alice", gotUser)
		}
	})

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.Header.Set("Authorization", "Bearer kms_nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
