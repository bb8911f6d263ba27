// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/provana/kms-tui/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
}

func TestClient_Create(t *testing.T) {
	var got struct {
		SessionID string       `json:"sessionId"`
		User      string       `json:"user"`
		Title     string       `json:"title"`
		Turns     []model.Turn `json:"turns"`
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/session" {
			t.Errorf("request = %s %s, want POST /api/session", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(model.Session{
			SessionID: got.SessionID,
			User:      got.User,
			Title:     got.Title,
			Turns:     got.Turns,
		})
	}))

	created, err := client.Create(context.Background(), model.Session{
		SessionID: "s1",
		User:      "alice",
		Title:     "What is X?",
		Turns:     []model.Turn{model.NewUserTurn("What is X?")},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.SessionID != "s1" || got.User != "alice" || got.Title != "What is X?" {
		t.Errorf("created = %+v, request = %+v", created, got)
	}
	if len(got.Turns) != 1 {
		t.Errorf("request turns = %d, want 1", len(got.Turns))
	}
}

func TestClient_LoginAttachesToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			var body struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Username != "alice" || body.Password != "hunter2" {
				t.Errorf("login body = %+v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{"token": "kms_abc"})
		case "/api/sessions":
			if got := r.Header.Get("Authorization"); got != "Bearer kms_abc" {
				t.Errorf("Authorization = %q, want the login token", got)
			}
			json.NewEncoder(w).Encode([]model.SessionMeta{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if err := client.Login(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, err := client.List(context.Background(), "alice"); err != nil {
		t.Fatalf("List() error: %v", err)
	}
}

func TestClient_GetNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Not found"})
	}))

	_, err := client.Get(context.Background(), "alice", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}

func TestClient_GetPassesQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user") != "alice" || q.Get("sessionId") != "s1" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(model.Session{SessionID: "s1", User: "alice"})
	}))

	session, err := client.Get(context.Background(), "alice", "s1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if session.SessionID != "s1" {
		t.Errorf("SessionID = %q", session.SessionID)
	}
}

func TestClient_AppendSendsTurn(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		var body struct {
			SessionID string     `json:"sessionId"`
			User      string     `json:"user"`
			Turn      model.Turn `json:"turn"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Turn.Role != model.RoleAssistant || body.Turn.Content != "an answer" {
			t.Errorf("turn = %+v", body.Turn)
		}
		json.NewEncoder(w).Encode(model.Session{
			SessionID: body.SessionID,
			User:      body.User,
			Turns:     []model.Turn{body.Turn},
		})
	}))

	updated, err := client.Append(context.Background(), "s1", "alice", model.NewAssistantTurn("an answer"))
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if len(updated.Turns) != 1 {
		t.Errorf("updated turns = %d, want 1", len(updated.Turns))
	}
}

func TestClient_ReplaceAll(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session/replace-all" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Turns []model.Turn `json:"turns"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(model.Session{SessionID: "s1", Turns: body.Turns})
	}))

	turns := []model.Turn{model.NewUserTurn("q"), model.NewAssistantTurn("a")}
	updated, err := client.ReplaceAll(context.Background(), "s1", "alice", turns)
	if err != nil {
		t.Fatalf("ReplaceAll() error: %v", err)
	}
	if len(updated.Turns) != 2 {
		t.Errorf("updated turns = %d, want 2", len(updated.Turns))
	}
}

func TestClient_ServerErrorSurfacesMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "database locked"})
	}))

	_, err := client.List(context.Background(), "alice")
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("List() = %v, want *ClientError", err)
	}
	if clientErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", clientErr.StatusCode)
	}
	if clientErr.Message != "database locked" {
		t.Errorf("Message = %q, want the store's error body", clientErr.Message)
	}
}
