// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives the visible transcript from decoded protocol
// events and local user actions.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/provana/kms-tui/internal/model"
	"github.com/provana/kms-tui/internal/protocol"
	"github.com/provana/kms-tui/internal/ws"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (s *fakeSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSender) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

type storeCall struct {
	op        string // "ensure", "append", "reconcile", "load"
	sessionID string
	user      string
	title     string
	turn      model.Turn
	turns     []model.Turn
}

type fakeStore struct {
	mu     sync.Mutex
	calls  []storeCall
	loaded []model.Turn
	err    error
}

func (f *fakeStore) EnsureSession(_ context.Context, user, sessionID, title string, firstTurn model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "ensure", sessionID: sessionID, user: user, title: title, turn: firstTurn})
	return f.err
}

func (f *fakeStore) AppendTurn(_ context.Context, sessionID, user string, turn model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "append", sessionID: sessionID, user: user, turn: turn})
	return f.err
}

func (f *fakeStore) Reconcile(_ context.Context, sessionID, user string, turns []model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "reconcile", sessionID: sessionID, user: user, turns: turns})
	return f.err
}

func (f *fakeStore) LoadSession(_ context.Context, user, sessionID string) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "load", sessionID: sessionID, user: user})
	if f.err != nil {
		return nil, f.err
	}
	return f.loaded, nil
}

func (f *fakeStore) callsOf(op string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storeCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// newTestController wires a controller with synchronous persistence so
// assertions never race the async path.
func newTestController(t *testing.T) (*Controller, *fakeSender, *fakeStore) {
	t.Helper()
	sender := &fakeSender{}
	store := &fakeStore{}
	c := NewController("alice", "Provana", sender, store)
	c.SetAsyncRunner(func(fn func()) { fn() })
	c.HandleStatus(ws.StatusConnected)
	return c, sender, store
}

func assistantContents(snap Snapshot) []string {
	var out []string
	for _, msg := range snap.Messages {
		if msg.Role == model.RoleAssistant {
			out = append(out, msg.DisplayContent())
		}
	}
	return out
}

// =============================================================================
// QUESTION SUBMISSION
// =============================================================================

func TestController_AskQuestionCreatesSessionAndSendsFrame(t *testing.T) {
	c, sender, store := newTestController(t)
	ctx := context.Background()

	if err := c.AskQuestion(ctx, "What is X?"); err != nil {
		t.Fatalf("AskQuestion() error: %v", err)
	}

	// Session created with the question as title and one user turn.
	ensures := store.callsOf("ensure")
	if len(ensures) != 1 {
		t.Fatalf("ensure calls = %d, want 1", len(ensures))
	}
	if ensures[0].title != "What is X?" {
		t.Errorf("title = %q, want %q", ensures[0].title, "What is X?")
	}
	if ensures[0].turn.Role != model.RoleUser || ensures[0].turn.Content != "What is X?" {
		t.Errorf("first turn = %+v, want user/What is X?", ensures[0].turn)
	}
	if ensures[0].sessionID != c.SessionID() {
		t.Error("ensure must target the active session identifier")
	}

	// Question frame carries session id, question, and dimensions.
	frames := sender.sent()
	if len(frames) != 1 {
		t.Fatalf("sent frames = %d, want 1", len(frames))
	}
	var frame struct {
		SessionID            string              `json:"session_id"`
		Question             string              `json:"question"`
		PredefinedDimensions map[string][]string `json:"predefined_dimensions"`
	}
	if err := json.Unmarshal(frames[0], &frame); err != nil {
		t.Fatalf("frame unmarshal: %v", err)
	}
	if frame.SessionID != c.SessionID() || frame.Question != "What is X?" {
		t.Errorf("frame = %+v", frame)
	}
	// The dimension carries the configured client name, not the user.
	if got := frame.PredefinedDimensions["ClientName"]; len(got) != 1 || got[0] != "Provana" {
		t.Errorf("ClientName dimension = %v, want [Provana]", got)
	}

	snap := c.View()
	if !snap.Processing {
		t.Error("Processing should be set while awaiting the response")
	}
	if !snap.Typing {
		t.Error("Typing indicator should be set after submit")
	}
}

func TestController_EmptyClientNameFallsBackToUser(t *testing.T) {
	sender := &fakeSender{}
	c := NewController("alice", "", sender, &fakeStore{})
	c.SetAsyncRunner(func(fn func()) { fn() })
	c.HandleStatus(ws.StatusConnected)

	if err := c.AskQuestion(context.Background(), "hi"); err != nil {
		t.Fatalf("AskQuestion() error: %v", err)
	}

	var frame struct {
		PredefinedDimensions map[string][]string `json:"predefined_dimensions"`
	}
	if err := json.Unmarshal(sender.sent()[0], &frame); err != nil {
		t.Fatalf("frame unmarshal: %v", err)
	}
	if got := frame.PredefinedDimensions["ClientName"]; len(got) != 1 || got[0] != "alice" {
		t.Errorf("ClientName dimension = %v, want [alice]", got)
	}
}

func TestController_AskQuestionRejectedWhileBusy(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if err := c.AskQuestion(ctx, "first"); err != nil {
		t.Fatalf("first AskQuestion() error: %v", err)
	}
	if err := c.AskQuestion(ctx, "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second AskQuestion() = %v, want ErrBusy", err)
	}
}

func TestController_AskQuestionRejectedOffline(t *testing.T) {
	c, _, _ := newTestController(t)
	c.HandleStatus(ws.StatusReconnecting)

	if err := c.AskQuestion(context.Background(), "hello?"); !errors.Is(err, ErrOffline) {
		t.Errorf("AskQuestion() = %v, want ErrOffline", err)
	}
}

func TestController_SecondQuestionAppendsInsteadOfCreating(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "first")
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: "a"})
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})
	c.AskQuestion(ctx, "second")

	if got := len(store.callsOf("ensure")); got != 1 {
		t.Errorf("ensure calls = %d, want 1", got)
	}
	appends := store.callsOf("append")
	var userAppends int
	for _, call := range appends {
		if call.turn.Role == model.RoleUser {
			userAppends++
		}
	}
	if userAppends != 1 {
		t.Errorf("user turn appends = %d, want 1 (second question only)", userAppends)
	}
}

// =============================================================================
// STREAMING
// =============================================================================

func TestController_StreamedAnswerScenario(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "What is 2+2?")
	for _, tok := range []string{"The", " answer", " is 4."} {
		c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: tok})
	}
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})

	snap := c.View()
	answers := assistantContents(snap)
	if len(answers) != 1 || answers[0] != "The answer is 4." {
		t.Errorf("assistant messages = %v, want exactly [The answer is 4.]", answers)
	}
	if snap.Processing {
		t.Error("processing lock should be released after end_of_answer")
	}

	// Assistant turn persisted, then the reconcile pass with the snapshot.
	appends := store.callsOf("append")
	if len(appends) != 1 || appends[0].turn.Content != "The answer is 4." {
		t.Fatalf("appends = %+v, want one assistant append", appends)
	}
	recs := store.callsOf("reconcile")
	if len(recs) != 1 {
		t.Fatalf("reconcile calls = %d, want 1", len(recs))
	}
	if len(recs[0].turns) != 2 {
		t.Errorf("reconcile snapshot turns = %d, want 2 (user + assistant)", len(recs[0].turns))
	}
}

func TestController_StateUpdateSetsThinking(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	if !c.View().Typing {
		t.Fatal("typing should be on after submit")
	}

	c.HandleEvent(ctx, protocol.StateUpdateEvent{Session: sid, Status: "Searching documents..."})
	snap := c.View()
	if snap.Thinking != "Searching documents..." {
		t.Errorf("Thinking = %q", snap.Thinking)
	}
	if snap.Typing {
		t.Error("thinking narration must clear the typing indicator")
	}

	// First token clears the thinking line.
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: "A"})
	if got := c.View().Thinking; got != "" {
		t.Errorf("Thinking after token = %q, want empty", got)
	}
}

func TestController_DuplicateEndOfAnswerIsNoop(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: "done"})
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})

	before := c.View()
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})
	after := c.View()

	if len(before.Messages) != len(after.Messages) {
		t.Error("duplicate end_of_answer must leave the transcript unchanged")
	}
	if got := len(store.callsOf("append")); got != 1 {
		t.Errorf("appends = %d, want 1 (no double-save)", got)
	}
}

func TestController_CompleteAnswerThenEndOfAnswerSavesOnce(t *testing.T) {
	// The non-streaming answer path and the end_of_answer marker may both
	// fire for one turn; finalization must stay idempotent.
	c, _, store := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.AnswerEvent{Session: sid, Content: "full answer"})
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})

	answers := assistantContents(c.View())
	if len(answers) != 1 || answers[0] != "full answer" {
		t.Errorf("assistant messages = %v, want [full answer]", answers)
	}
	if got := len(store.callsOf("append")); got != 1 {
		t.Errorf("appends = %d, want 1", got)
	}
	if got := len(store.callsOf("reconcile")); got != 1 {
		t.Errorf("reconciles = %d, want 1", got)
	}
}

// =============================================================================
// STALE-SESSION GUARD
// =============================================================================

func TestController_StaleSessionEventsDiscarded(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.StateUpdateEvent{Session: sid, Status: "Working..."})
	before := c.View()

	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: "other", Token: "junk"})
	c.HandleEvent(ctx, protocol.StateUpdateEvent{Session: "other", Status: "stale narration"})
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: "other"})
	after := c.View()

	if len(after.Messages) != len(before.Messages) {
		t.Error("stale events must not mutate the transcript")
	}
	if after.Thinking != before.Thinking {
		t.Error("stale events must not mutate the thinking text")
	}
	if after.Typing != before.Typing {
		t.Error("stale events must not mutate the typing indicator")
	}
	if !after.Processing {
		t.Error("stale end_of_answer must not release the processing lock")
	}
}

func TestController_NewChatInvalidatesOldSession(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	old := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.NewChat()

	if c.SessionID() == old {
		t.Fatal("NewChat must generate a fresh session identifier")
	}

	// Late event for the abandoned session: dropped.
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: old, Token: "late"})
	if got := c.View().Messages; len(got) != 0 {
		t.Errorf("transcript = %d messages, want 0 after NewChat", len(got))
	}
}

// =============================================================================
// CLARIFICATION
// =============================================================================

func TestController_ClarificationScenario(t *testing.T) {
	c, sender, _ := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "What about X?")
	c.HandleEvent(ctx, protocol.ClarificationEvent{Session: sid, Prompt: "Which X?"})

	snap := c.View()
	answers := assistantContents(snap)
	if len(answers) != 1 || answers[0] != "Which X?" {
		t.Errorf("assistant messages = %v, want [Which X?]", answers)
	}
	if !snap.ClarificationPending() {
		t.Fatal("clarification should be pending")
	}
	if snap.Processing {
		t.Error("clarification must release the input lock")
	}

	// The next submission routes as a clarification frame.
	if err := c.AnswerClarification(ctx, "the blue one"); err != nil {
		t.Fatalf("AnswerClarification() error: %v", err)
	}
	frames := sender.sent()
	last := frames[len(frames)-1]
	var clar struct {
		SessionID string `json:"session_id"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(last, &clar); err != nil {
		t.Fatalf("clarification frame unmarshal: %v", err)
	}
	if clar.SessionID != sid || clar.Content != "the blue one" {
		t.Errorf("clarification frame = %+v", clar)
	}
	if c.View().ClarificationPending() {
		t.Error("pending clarification should clear after answering")
	}
}

func TestController_AnswerClarificationWithoutPending(t *testing.T) {
	c, _, _ := newTestController(t)

	err := c.AnswerClarification(context.Background(), "answer")
	if !errors.Is(err, ErrNoClarification) {
		t.Errorf("AnswerClarification() = %v, want ErrNoClarification", err)
	}
}

func TestController_ClarificationKeepsStreamedTokens(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: "partial"})
	c.HandleEvent(ctx, protocol.ClarificationEvent{Session: sid, Prompt: "Which?"})

	answers := assistantContents(c.View())
	if len(answers) != 2 {
		t.Fatalf("assistant messages = %v, want streamed tokens plus prompt", answers)
	}
	if answers[0] != "partial" {
		t.Errorf("streamed content = %q, want preserved", answers[0])
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestController_BackendErrorReleasesLock(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	sid := c.SessionID()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.BackendErrorEvent{Session: sid, Message: "index unavailable"})

	snap := c.View()
	if snap.Processing {
		t.Error("backend error must release the processing lock")
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != model.RoleSystem || last.Content != "Error: index unavailable" {
		t.Errorf("last message = %s/%q", last.Role, last.Content)
	}
	if last.Class != model.ClassError {
		t.Errorf("class = %q, want error", last.Class)
	}
}

func TestController_MalformedFrameSurfacedLocally(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	c.AskQuestion(ctx, "q")
	c.HandleEvent(ctx, protocol.MalformedEvent{Reason: "unparseable frame"})

	snap := c.View()
	if snap.Processing {
		t.Error("a decode failure aborts the turn")
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != model.RoleSystem {
		t.Errorf("last message role = %s, want system", last.Role)
	}
}

func TestController_PersistenceFailureDoesNotBlockStream(t *testing.T) {
	c, _, store := newTestController(t)
	store.err = errors.New("store down")
	ctx := context.Background()
	sid := c.SessionID()

	if err := c.AskQuestion(ctx, "q"); err != nil {
		t.Fatalf("AskQuestion() must not surface persistence errors, got %v", err)
	}
	c.HandleEvent(ctx, protocol.AnswerTokenEvent{Session: sid, Token: "live tokens"})
	c.HandleEvent(ctx, protocol.EndOfAnswerEvent{Session: sid})

	answers := assistantContents(c.View())
	if len(answers) != 1 || answers[0] != "live tokens" {
		t.Errorf("assistant messages = %v, want the live stream intact", answers)
	}
}

// =============================================================================
// SESSION LOADING
// =============================================================================

func TestController_LoadSessionReplacesTranscript(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()

	c.AskQuestion(ctx, "current conversation")
	store.loaded = []model.Turn{
		{Role: model.RoleUser, Content: "old question"},
		{Role: model.RoleAssistant, Content: "old answer"},
	}

	if err := c.LoadSession(ctx, "stored-session"); err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}

	if c.SessionID() != "stored-session" {
		t.Errorf("SessionID() = %q, want stored-session", c.SessionID())
	}
	snap := c.View()
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(snap.Messages))
	}
	if snap.Messages[0].Role != model.RoleUser || snap.Messages[0].Content != "old question" {
		t.Errorf("messages[0] = %s/%q", snap.Messages[0].Role, snap.Messages[0].Content)
	}
	if snap.Messages[1].Role != model.RoleAssistant || snap.Messages[1].Content != "old answer" {
		t.Errorf("messages[1] = %s/%q", snap.Messages[1].Role, snap.Messages[1].Content)
	}
	if snap.Processing || snap.Typing || snap.Thinking != "" || snap.ClarificationPending() {
		t.Error("loading a session must clear transients")
	}
}

func TestController_LoadSessionTargetsSubsequentPersistence(t *testing.T) {
	c, _, store := newTestController(t)
	ctx := context.Background()
	store.loaded = []model.Turn{{Role: model.RoleUser, Content: "old"}}

	if err := c.LoadSession(ctx, "stored-session"); err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}
	c.AskQuestion(ctx, "follow-up")

	appends := store.callsOf("append")
	if len(appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(appends))
	}
	if appends[0].sessionID != "stored-session" {
		t.Errorf("append targeted %q, want stored-session", appends[0].sessionID)
	}
}
