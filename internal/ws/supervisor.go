// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws owns the single duplex connection to the KMS realtime backend.
package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// =============================================================================
// CONNECTIVITY STATUS
// =============================================================================

// Status is the tri-state connectivity of the supervisor. Exactly one value
// holds at any time; it drives whether outbound sends are permitted.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusReconnecting
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotConnected is returned by Send while no connection is established.
// Callers reject the action locally; outbound frames are never queued.
var ErrNotConnected = errors.New("ws: not connected")

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the supervisor's endpoint and retry policy.
type Options struct {
	// URL is the websocket endpoint of the realtime backend.
	URL string

	// BaseDelay is the first retry delay (default: 1s).
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff (default: 30s).
	MaxDelay time.Duration

	// MaxAttempts bounds consecutive failed reconnects before the
	// supervisor gives up (default: 5).
	MaxAttempts int
}

// DefaultOptions returns the default retry policy.
func DefaultOptions(url string) Options {
	return Options{
		URL:         url,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

func (o *Options) fillDefaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
}

// Backoff returns the delay before the given retry attempt (zero-based):
// min(base << attempt, max). Pure, so the policy is testable without timers.
func (o Options) Backoff(attempt int) time.Duration {
	delay := o.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// =============================================================================
// SUPERVISOR
// =============================================================================

// Supervisor owns the single active connection. Only the supervisor opens or
// closes it; everything else goes through Send.
type Supervisor struct {
	mu sync.Mutex

	opts      Options
	transport Transport

	conn     Conn
	status   Status
	attempts int

	// generation invalidates read loops and retry timers from a superseded
	// connection; a clean Close bumps it too.
	generation int

	// closed marks a caller-initiated shutdown; suppresses all reconnects
	// until the next explicit Open.
	closed  bool
	dialing bool

	retryTimer *time.Timer

	onFrame  func(data []byte)
	onStatus func(status Status)
}

// NewSupervisor creates a supervisor over the real websocket transport.
func NewSupervisor(opts Options) *Supervisor {
	return NewSupervisorWithTransport(opts, NewWebsocketTransport())
}

// NewSupervisorWithTransport creates a supervisor over a custom transport.
// Used by tests to script dial outcomes.
func NewSupervisorWithTransport(opts Options, transport Transport) *Supervisor {
	opts.fillDefaults()
	return &Supervisor{
		opts:      opts,
		transport: transport,
		status:    StatusDisconnected,
	}
}

// OnFrame registers the inbound frame callback. Frames for a given
// connection are delivered strictly in arrival order from a single goroutine.
func (s *Supervisor) OnFrame(fn func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = fn
}

// OnStatus registers the status transition callback.
func (s *Supervisor) OnStatus(fn func(status Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Status returns the current connectivity status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open establishes a connection. Calling Open re-arms a supervisor that was
// closed or that exhausted its retries, and resets the attempt counter.
// A no-op while a connection is live or a dial is in flight; the existing
// connection stays the active one.
func (s *Supervisor) Open(ctx context.Context) {
	s.mu.Lock()
	if s.dialing || (s.status == StatusConnected && s.conn != nil) {
		s.mu.Unlock()
		return
	}
	s.closed = false
	s.attempts = 0
	s.stopRetryTimerLocked()
	s.mu.Unlock()

	s.dial(ctx)
}

// Close performs a clean, caller-initiated closure (code 1000) and
// suppresses all further reconnection.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.stopRetryTimerLocked()
	conn := s.conn
	s.conn = nil
	notify := s.setStatusLocked(StatusDisconnected)
	s.mu.Unlock()

	if conn != nil {
		conn.Close(1000, "client shutdown")
	}
	notify()
}

// Send transmits one text frame on the active connection.
func (s *Supervisor) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(data)
}

// =============================================================================
// DIAL AND READ LOOP
// =============================================================================

// dial performs exactly one connection attempt.
func (s *Supervisor) dial(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.dialing {
		s.mu.Unlock()
		return
	}
	s.dialing = true
	url := s.opts.URL
	s.mu.Unlock()

	conn, err := s.transport.Dial(ctx, url)

	s.mu.Lock()
	s.dialing = false
	if s.closed {
		s.mu.Unlock()
		if conn != nil {
			conn.Close(1000, "client shutdown")
		}
		return
	}
	if err != nil {
		log.Printf("[ws] dial failed (attempt %d): %v", s.attempts+1, err)
		notify := s.scheduleRetryLocked(ctx)
		s.mu.Unlock()
		notify()
		return
	}

	s.conn = conn
	s.attempts = 0
	s.generation++
	gen := s.generation
	notify := s.setStatusLocked(StatusConnected)
	s.mu.Unlock()

	notify()
	go s.readLoop(ctx, conn, gen)
}

// readLoop pumps inbound frames until the connection dies.
func (s *Supervisor) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosure(ctx, gen, err)
			return
		}

		s.mu.Lock()
		stale := gen != s.generation
		onFrame := s.onFrame
		s.mu.Unlock()

		if stale {
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}

// handleClosure classifies a dead connection and applies the retry policy.
func (s *Supervisor) handleClosure(ctx context.Context, gen int, err error) {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		// Superseded connection or caller-initiated shutdown.
		s.mu.Unlock()
		return
	}
	s.conn = nil

	if isCleanClose(err) {
		// Deliberate closure from the peer: no reconnect.
		log.Printf("[ws] connection closed cleanly")
		notify := s.setStatusLocked(StatusDisconnected)
		s.mu.Unlock()
		notify()
		return
	}

	log.Printf("[ws] connection lost: %v", err)
	notify := s.scheduleRetryLocked(ctx)
	s.mu.Unlock()
	notify()
}

// scheduleRetryLocked arms the next reconnect attempt or gives up.
// Caller holds s.mu; the returned func delivers the status change unlocked.
func (s *Supervisor) scheduleRetryLocked(ctx context.Context) func() {
	if s.attempts >= s.opts.MaxAttempts {
		log.Printf("[ws] giving up after %d attempts", s.attempts)
		return s.setStatusLocked(StatusDisconnected)
	}

	delay := s.opts.Backoff(s.attempts)
	s.attempts++
	notify := s.setStatusLocked(StatusReconnecting)

	s.stopRetryTimerLocked()
	s.retryTimer = time.AfterFunc(delay, func() {
		s.dial(ctx)
	})

	return notify
}

func (s *Supervisor) stopRetryTimerLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// setStatusLocked records a transition and returns the deferred
// notification. Callbacks always run outside the lock.
func (s *Supervisor) setStatusLocked(status Status) func() {
	if s.status == status {
		return func() {}
	}
	s.status = status
	fn := s.onStatus
	if fn == nil {
		return func() {}
	}
	return func() { fn(status) }
}
