// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/provana/kms-tui/internal/gate"
	"github.com/provana/kms-tui/internal/storage"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8790"

	// MaxRequestBodySize caps request bodies to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
)

// =============================================================================
// SERVER
// =============================================================================

// Config holds server settings.
type Config struct {
	// Addr is the listen address. Default: 127.0.0.1:8790
	Addr string

	// RequestsPerSecond is the per-client rate limit. Default: 20
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Default: 40
	Burst int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:              DefaultAddr,
		RequestsPerSecond: 20,
		Burst:             40,
	}
}

func (c *Config) fillDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
}

// Server is the session store HTTP server.
type Server struct {
	config *Config
	db     *storage.SessionDB
	gate   *gate.Gate
	http   *http.Server
}

// New creates a server over the given database and login gate.
func New(config *Config, db *storage.SessionDB, g *gate.Gate) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	config.fillDefaults()

	s := &Server{config: config, db: db, gate: g}
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the assembled route tree.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(limitBody(MaxRequestBodySize))
	r.Use(rateLimit(s.config.RequestsPerSecond, s.config.Burst))

	r.Get("/health", s.handleHealth)
	r.Post("/api/login", s.handleLogin)

	r.Group(func(api chi.Router) {
		api.Use(s.gate.Middleware)
		api.Post("/api/session", s.handleCreateSession)
		api.Get("/api/session", s.handleGetSession)
		api.Put("/api/session", s.handleAppendTurn)
		api.Post("/api/session/replace-all", s.handleReplaceTurns)
		api.Get("/api/sessions", s.handleListSessions)
	})

	return r
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.config.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Printf("[server] shutting down")
	return s.http.Shutdown(shutdownCtx)
}
