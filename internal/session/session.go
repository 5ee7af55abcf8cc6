// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jeranaias/drchat/internal/backend"
	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/research"
)

// Client is the part of the backend a session needs.
type Client interface {
	Submit(ctx context.Context, req research.QueryRequest) (string, error)
	Stream(ctx context.Context, requestID string, handler backend.Handler) error
}

// Recorder persists a conversation after each settled question.
type Recorder interface {
	Save(ctx context.Context, conv *model.Conversation) error
}

// Update is a snapshot of the session after a change.
type Update struct {
	Version     uint64
	Messages    []model.Message
	Loading     bool
	ShowDetails bool

	// Done is set on the update that settles a question.
	Done bool
	// Err is the failure that settled the question, if any. A backend error
	// event is reported as *research.ErrorEvent.
	Err error
}

// Config configures a Session.
type Config struct {
	// OnUpdate receives every change made by a stream goroutine.
	OnUpdate func(Update)

	// Recorder, when set, is called after every settled question.
	Recorder Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Conversation to continue; a new one is created when nil.
	Conversation *model.Conversation
}

// run is one submitted question and its stream.
type run struct {
	cancel context.CancelFunc
}

// =============================================================================
// SESSION
// =============================================================================

// Session is a conversation with a single active research stream.
type Session struct {
	mu      sync.Mutex
	client  Client
	conv    *model.Conversation
	active  *run
	version uint64
	closed  bool

	onUpdate func(Update)
	recorder Recorder
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a session backed by client.
func New(client Client, cfg Config) *Session {
	s := &Session{
		client:   client,
		conv:     cfg.Conversation,
		onUpdate: cfg.OnUpdate,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
	if s.conv == nil {
		s.conv = model.NewConversation()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Ask submits question, replacing any active stream. Blank questions and
// calls on a closed session are ignored and reported with false.
func (s *Session) Ask(ctx context.Context, question string) (Update, bool) {
	question = research.NormalizeQuestion(question)

	s.mu.Lock()
	if s.closed || question == "" {
		u := s.snapshotLocked(false, nil)
		s.mu.Unlock()
		return u, false
	}

	s.stopLocked()
	s.conv.Submit(question)

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel}
	s.active = r
	s.wg.Add(1)
	u := s.snapshotLocked(false, nil)
	s.mu.Unlock()

	s.logger.Info("question submitted", "conversation", s.conv.ID, "length", len(question))
	go s.execute(runCtx, r, question)
	return u, true
}

// Cancel closes the active stream, if any, and removes its progress.
func (s *Session) Cancel() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.stopLocked()
		s.conv.Abandon()
		s.logger.Info("stream cancelled", "conversation", s.conv.ID)
	}
	return s.snapshotLocked(false, nil)
}

// Clear cancels the active stream and empties the conversation.
func (s *Session) Clear() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.conv.Clear()
	return s.snapshotLocked(false, nil)
}

// Close cancels the active stream and waits for its goroutine to exit.
// The session ignores further questions.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until every stream goroutine has exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Loading reports whether a question is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(false, nil)
}

// ToggleDetails flips the global details switch.
func (s *Session) ToggleDetails() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.ToggleDetails()
	return s.snapshotLocked(false, nil)
}

// Conversation returns a copy of the conversation.
func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// =============================================================================
// STREAM GOROUTINE
// =============================================================================

func (s *Session) execute(ctx context.Context, r *run, question string) {
	defer s.wg.Done()
	defer r.cancel()

	id, err := s.client.Submit(ctx, research.NewQueryRequest(question))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("submit failed", "error", err)
		s.settle(ctx, r, err, func(c *model.Conversation) { c.FailRequest(err) })
		return
	}

	var terminal research.Event
	err = s.client.Stream(ctx, id, func(ev research.Event) {
		s.mutate(r, func(c *model.Conversation) {
			if c.Apply(ev) {
				terminal = ev
			}
		})
	})

	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		s.logger.Warn("stream failed", "request_id", id, "error", err)
		s.settle(ctx, r, err, func(c *model.Conversation) { c.FailStream() })
	default:
		var failure error
		if evErr, ok := terminal.(*research.ErrorEvent); ok {
			failure = evErr
		}
		s.settle(ctx, r, failure, nil)
	}
}

// mutate applies fn if r is still the active run and publishes the result.
func (s *Session) mutate(r *run, fn func(*model.Conversation)) {
	s.mu.Lock()
	if s.active != r {
		s.mu.Unlock()
		return
	}
	fn(s.conv)
	u := s.snapshotLocked(false, nil)
	s.mu.Unlock()
	s.publish(u)
}

// settle ends r, applying fn first, and hands the conversation to the
// recorder.
func (s *Session) settle(ctx context.Context, r *run, failure error, fn func(*model.Conversation)) {
	s.mu.Lock()
	if s.active != r {
		s.mu.Unlock()
		return
	}
	if fn != nil {
		fn(s.conv)
	}
	s.active = nil
	u := s.snapshotLocked(true, failure)
	record := s.copyLocked()
	s.mu.Unlock()

	s.publish(u)

	if s.recorder != nil {
		if err := s.recorder.Save(context.WithoutCancel(ctx), record); err != nil {
			s.logger.Error("failed to record conversation", "conversation", record.ID, "error", err)
		}
	}
}

func (s *Session) publish(u Update) {
	if s.onUpdate != nil {
		s.onUpdate(u)
	}
}

// =============================================================================
// LOCKED HELPERS
// =============================================================================

// stopLocked cancels the active run without waiting for it.
func (s *Session) stopLocked() {
	if s.active != nil {
		s.active.cancel()
		s.active = nil
	}
}

func (s *Session) snapshotLocked(done bool, err error) Update {
	s.version++
	return Update{
		Version:     s.version,
		Messages:    s.conv.Messages(),
		Loading:     s.active != nil,
		ShowDetails: s.conv.ShowDetails(),
		Done:        done,
		Err:         err,
	}
}

func (s *Session) copyLocked() *model.Conversation {
	c := model.Restore(s.conv.ID, s.conv.CreatedAt, s.conv.UpdatedAt, s.conv.Messages())
	c.SetShowDetails(s.conv.ShowDetails())
	return c
}
