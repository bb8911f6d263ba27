// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives the visible transcript from decoded protocol
// events and local user actions.
package conversation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/protocol"
	"github.com/provana/kms-tui/internal/ws"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOffline is returned when a send is attempted without a connection.
	ErrOffline = errors.New("conversation: not connected")

	// ErrBusy is returned while a previous question is still processing.
	// Questions are rejected locally, never queued silently.
	ErrBusy = errors.New("conversation: a question is already in flight")

	// ErrEmptyInput is returned for blank submissions.
	ErrEmptyInput = errors.New("conversation: empty input")

	// ErrNoClarification is returned when answering a clarification that
	// is not pending.
	ErrNoClarification = errors.New("conversation: no clarification pending")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Sender transmits one outbound text frame. Satisfied by *ws.Supervisor.
type Sender interface {
	Send(data []byte) error
}

// Persister mirrors conversation turns to the remote session store.
// Satisfied by *sessionstore.Synchronizer. Every method takes snapshot
// arguments; implementations must never read shared state at completion time.
type Persister interface {
	EnsureSession(ctx context.Context, user, sessionID, title string, firstTurn model.Turn) error
	AppendTurn(ctx context.Context, sessionID, user string, turn model.Turn) error
	Reconcile(ctx context.Context, sessionID, user string, turns []model.Turn) error
	LoadSession(ctx context.Context, user, sessionID string) ([]model.Turn, error)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a read-only view of the conversation for the renderer.
type Snapshot struct {
	SessionID     string
	Messages      []*model.VisibleMessage
	Thinking      string
	Typing        bool
	Clarification string
	Processing    bool
	Status        ws.Status
}

// ClarificationPending reports whether the next submission routes as a
// clarification answer.
func (s Snapshot) ClarificationPending() bool {
	return s.Clarification != ""
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation state for one user. All mutations are
// serialized under its mutex; persistence runs asynchronously on snapshots.
type Controller struct {
	mu sync.Mutex

	user       string
	clientName string
	sessionID  string

	transcript *model.Transcript

	thinking      string
	typing        bool
	clarification string
	processing    bool
	status        ws.Status

	// sessionCreated tracks whether the active session exists remotely.
	sessionCreated bool

	sender  Sender
	store   Persister
	onChange func()

	// async runs persistence work off the event path. Tests replace it
	// with a synchronous runner.
	async func(fn func())
}

// NewController creates a controller for the given user identity with a
// fresh client-generated session identifier. clientName is the retrieval
// scope sent on every question frame; empty falls back to the user.
func NewController(user, clientName string, sender Sender, store Persister) *Controller {
	if clientName == "" {
		clientName = user
	}
	return &Controller{
		user:       user,
		clientName: clientName,
		sessionID:  model.NewSessionID(),
		transcript: model.NewTranscript(),
		sender:     sender,
		store:      store,
		async:      func(fn func()) { go fn() },
	}
}

// OnChange registers a callback fired after every state mutation, outside
// the lock. The renderer uses it to trigger repaints for async events.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// SetAsyncRunner overrides how persistence work is scheduled.
func (c *Controller) SetAsyncRunner(run func(fn func())) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.async = run
}

// SessionID returns the active session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// View returns a snapshot of the current conversation state.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:     c.sessionID,
		Messages:      c.transcript.Messages(),
		Thinking:      c.thinking,
		Typing:        c.typing,
		Clarification: c.clarification,
		Processing:    c.processing,
		Status:        c.status,
	}
}

// =============================================================================
// CONNECTIVITY
// =============================================================================

// HandleStatus applies a connectivity transition from the supervisor.
func (c *Controller) HandleStatus(status ws.Status) {
	c.mu.Lock()
	prev := c.status
	c.status = status

	switch status {
	case ws.StatusConnected:
		c.transcript.AppendSystem("Connected to Provana KMS", model.ClassInfo)
		c.processing = false
	case ws.StatusReconnecting:
		c.transcript.AppendSystem("Connection lost. Attempting to reconnect...", model.ClassWarning)
		c.processing = false
		c.typing = false
		c.thinking = ""
	case ws.StatusDisconnected:
		if prev == ws.StatusReconnecting {
			c.transcript.AppendSystem("Could not reconnect. Please refresh the page.", model.ClassError)
		}
		c.processing = false
		c.typing = false
		c.thinking = ""
	}
	c.mu.Unlock()
	c.notify()
}

// =============================================================================
// USER ACTIONS
// =============================================================================

// AskQuestion submits a new question. Permitted only while connected and not
// already awaiting a response.
func (c *Controller) AskQuestion(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.status != ws.StatusConnected {
		c.mu.Unlock()
		return ErrOffline
	}
	if c.processing {
		c.mu.Unlock()
		return ErrBusy
	}

	frame, err := protocol.NewQuestionFrame(c.sessionID, text, c.clientName).Encode()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	// Optimistic local append before the network round trip.
	c.transcript.AppendUser(text)
	c.thinking = ""
	c.typing = true
	c.processing = true
	c.clarification = ""
	persist := c.persistUserTurnLocked(ctx, text)
	c.mu.Unlock()
	c.notify()

	c.async(persist)

	if err := c.sender.Send(frame); err != nil {
		c.mu.Lock()
		c.transcript.AppendSystem("Failed to send question: "+err.Error(), model.ClassError)
		c.processing = false
		c.typing = false
		c.mu.Unlock()
		c.notify()
		return err
	}
	return nil
}

// AnswerClarification submits the answer to the pending clarification
// prompt, tagged to the current session identifier.
func (c *Controller) AnswerClarification(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.clarification == "" {
		c.mu.Unlock()
		return ErrNoClarification
	}
	if c.status != ws.StatusConnected {
		c.mu.Unlock()
		return ErrOffline
	}

	frame, err := protocol.ClarificationFrame{SessionID: c.sessionID, Content: text}.Encode()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.transcript.AppendUser(text)
	c.clarification = ""
	c.typing = true
	c.processing = true
	persist := c.persistUserTurnLocked(ctx, text)
	c.mu.Unlock()
	c.notify()

	c.async(persist)

	if err := c.sender.Send(frame); err != nil {
		c.mu.Lock()
		c.transcript.AppendSystem("Failed to send answer: "+err.Error(), model.ClassError)
		c.processing = false
		c.typing = false
		c.mu.Unlock()
		c.notify()
		return err
	}
	return nil
}

// NewChat abandons the active session and starts a fresh one. Late events
// for the old identifier are discarded by the stale-session guard.
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.sessionID = model.NewSessionID()
	c.sessionCreated = false
	c.transcript.Clear()
	c.thinking = ""
	c.typing = false
	c.clarification = ""
	c.processing = false
	c.mu.Unlock()
	c.notify()
}

// LoadSession replaces the transcript with a previously stored session and
// switches the active identifier to it.
func (c *Controller) LoadSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()

	turns, err := c.store.LoadSession(ctx, user, sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.sessionCreated = true
	c.transcript.Replace(turns)
	c.thinking = ""
	c.typing = false
	c.clarification = ""
	c.processing = false
	c.mu.Unlock()
	c.notify()
	return nil
}

// =============================================================================
// INBOUND EVENTS
// =============================================================================

// HandleEvent applies one decoded inbound event.
func (c *Controller) HandleEvent(ctx context.Context, ev protocol.Event) {
	c.mu.Lock()

	// Stale-session guard: a frame tagged with another session identifier
	// never mutates the active conversation. Unparseable frames carry no
	// identifier and are surfaced locally.
	if id := ev.SessionID(); id != "" && id != c.sessionID {
		c.mu.Unlock()
		return
	}

	var persist func()
	switch e := ev.(type) {
	case protocol.StateUpdateEvent:
		// Thinking narration supersedes the generic typing dots.
		c.thinking = e.Status
		c.typing = false

	case protocol.AnswerTokenEvent:
		c.thinking = ""
		c.typing = false
		c.transcript.AppendToken(e.Token)

	case protocol.AnswerEvent:
		c.thinking = ""
		c.typing = false
		c.transcript.AppendToken(e.Content)
		persist = c.finalizeTurnLocked(ctx)

	case protocol.ClarificationEvent:
		c.thinking = ""
		c.typing = false
		c.transcript.AppendAssistant(e.Prompt)
		c.clarification = e.Prompt
		// The input lock releases so the user can answer immediately; the
		// exchange itself stays open until the real answer completes.
		c.processing = false
		persist = c.persistAssistantPromptLocked(ctx, e.Prompt)

	case protocol.EndOfAnswerEvent:
		c.thinking = ""
		c.typing = false
		persist = c.finalizeTurnLocked(ctx)

	case protocol.BackendErrorEvent:
		c.thinking = ""
		c.typing = false
		c.processing = false
		c.transcript.CloseOpen()
		c.transcript.AppendSystem("Error: "+e.Message, model.ClassError)

	case protocol.MalformedEvent:
		c.thinking = ""
		c.typing = false
		c.processing = false
		c.transcript.AppendSystem("Error processing server response.", model.ClassError)
		log.Printf("[conversation] dropped bad frame: %s", e.Reason)
	}

	c.mu.Unlock()
	c.notify()

	if persist != nil {
		c.async(persist)
	}
}

// =============================================================================
// PERSISTENCE (snapshots only past this point)
// =============================================================================

// persistUserTurnLocked captures the work to durably record a user turn.
// Caller holds c.mu; the returned closure runs without it.
func (c *Controller) persistUserTurnLocked(ctx context.Context, text string) func() {
	user := c.user
	sessionID := c.sessionID
	turn := model.NewUserTurn(text)

	if !c.sessionCreated {
		// Optimistic: flip before the remote call so concurrent turns
		// don't race to create. A failed create is repaired by reconcile.
		c.sessionCreated = true
		title := model.DeriveTitle(text)
		return func() {
			if err := c.store.EnsureSession(ctx, user, sessionID, title, turn); err != nil {
				log.Printf("[conversation] session create failed (will reconcile): %v", err)
			}
		}
	}

	return func() {
		if err := c.store.AppendTurn(ctx, sessionID, user, turn); err != nil {
			log.Printf("[conversation] user turn append failed (will reconcile): %v", err)
		}
	}
}

// persistAssistantPromptLocked records a clarification prompt as an
// assistant turn without running the reconcile pass: the exchange is not
// finalized yet.
func (c *Controller) persistAssistantPromptLocked(ctx context.Context, prompt string) func() {
	user := c.user
	sessionID := c.sessionID
	turn := model.NewAssistantTurn(prompt)
	return func() {
		if err := c.store.AppendTurn(ctx, sessionID, user, turn); err != nil {
			log.Printf("[conversation] clarification append failed (will reconcile): %v", err)
		}
	}
}

// finalizeTurnLocked closes the open assistant message and captures the
// persistence pass for it. Idempotent: a duplicate end_of_answer finds
// nothing open and persists nothing.
func (c *Controller) finalizeTurnLocked(ctx context.Context) func() {
	c.processing = false

	msg := c.transcript.CloseOpen()
	if msg == nil || msg.IsEmpty() {
		return nil
	}

	user := c.user
	sessionID := c.sessionID
	turn := model.NewAssistantTurn(msg.Content)
	snapshot := c.transcript.Turns()

	return func() {
		if err := c.store.AppendTurn(ctx, sessionID, user, turn); err != nil {
			log.Printf("[conversation] assistant turn append failed: %v", err)
		}
		// Self-healing pass: repairs any append the store missed.
		if err := c.store.Reconcile(ctx, sessionID, user, snapshot); err != nil {
			log.Printf("[conversation] reconcile failed: %v", err)
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
