// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/provana/kms-tui/internal/gate"
	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/storage"
)

// =============================================================================
// AUTH
// =============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.gate.Login(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"user":  req.Username,
	})
}

// =============================================================================
// SESSION CRUD
// =============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string       `json:"sessionId"`
		User      string       `json:"user"`
		Title     string       `json:"title"`
		Turns     []model.Turn `json:"turns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = model.NewSessionID()
	}
	if !s.authorize(w, r, req.User) {
		return
	}

	session := model.Session{
		SessionID: req.SessionID,
		User:      req.User,
		Title:     req.Title,
		Turns:     req.Turns,
	}
	if err := s.db.CreateSession(r.Context(), session); err != nil {
		s.respondStorageError(w, "create session", err)
		return
	}

	created, err := s.db.GetSession(r.Context(), req.User, req.SessionID)
	if err != nil {
		s.respondStorageError(w, "load created session", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	sessionID := r.URL.Query().Get("sessionId")
	if user == "" || sessionID == "" {
		respondError(w, http.StatusBadRequest, "user and sessionId are required")
		return
	}
	if !s.authorize(w, r, user) {
		return
	}

	session, err := s.db.GetSession(r.Context(), user, sessionID)
	if err != nil {
		s.respondStorageError(w, "get session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string     `json:"sessionId"`
		User      string     `json:"user"`
		Turn      model.Turn `json:"turn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" || req.Turn.Content == "" {
		respondError(w, http.StatusBadRequest, "sessionId and turn are required")
		return
	}
	if !s.authorize(w, r, req.User) {
		return
	}

	if err := s.db.AppendTurn(r.Context(), req.SessionID, req.User, req.Turn); err != nil {
		s.respondStorageError(w, "append turn", err)
		return
	}

	updated, err := s.db.GetSession(r.Context(), req.User, req.SessionID)
	if err != nil {
		s.respondStorageError(w, "load updated session", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleReplaceTurns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string       `json:"sessionId"`
		User      string       `json:"user"`
		Turns     []model.Turn `json:"turns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if !s.authorize(w, r, req.User) {
		return
	}

	if err := s.db.ReplaceTurns(r.Context(), req.SessionID, req.User, req.Turns); err != nil {
		s.respondStorageError(w, "replace turns", err)
		return
	}

	updated, err := s.db.GetSession(r.Context(), req.User, req.SessionID)
	if err != nil {
		s.respondStorageError(w, "load updated session", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respondError(w, http.StatusBadRequest, "user is required")
		return
	}
	if !s.authorize(w, r, user) {
		return
	}

	metas, err := s.db.ListSessions(r.Context(), user)
	if err != nil {
		s.respondStorageError(w, "list sessions", err)
		return
	}
	respondJSON(w, http.StatusOK, metas)
}

// =============================================================================
// HEALTH
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{"status": status})
}

// =============================================================================
// HELPERS
// =============================================================================

// authorize checks that the request targets the authenticated user's own
// sessions. A token never grants access to another user's data.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, user string) bool {
	authUser, ok := gate.UserFromContext(r.Context())
	if !ok || user == "" || user != authUser {
		respondError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func (s *Server) respondStorageError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	log.Printf("[server] %s: %v", op, err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
