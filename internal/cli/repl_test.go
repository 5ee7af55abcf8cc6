// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/drchat/internal/backend"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/session"
)

// scriptedInput replays lines, then reports EOF.
type scriptedInput struct {
	lines  []string
	closed bool
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) Close() { s.closed = true }

// scriptedClient answers every question with the same events.
type scriptedClient struct {
	events []research.Event
	asked  []string
}

func (c *scriptedClient) Submit(ctx context.Context, req research.QueryRequest) (string, error) {
	c.asked = append(c.asked, req.Q)
	return "req", nil
}

func (c *scriptedClient) Stream(ctx context.Context, id string, h backend.Handler) error {
	for _, ev := range c.events {
		h(ev)
	}
	return nil
}

func newTestPlainChat(client session.Client) (*plainChat, *bytes.Buffer, *bytes.Buffer) {
	var out, status bytes.Buffer
	printer := newMessagePrinter(&out, &status, nil, false)
	c := newPlainChat(client, session.Config{}, printer, &status)
	c.interrupt = func() (<-chan os.Signal, func()) { return nil, func() {} }
	return c, &out, &status
}

func TestPlainChat_AsksAndPrints(t *testing.T) {
	client := &scriptedClient{events: []research.Event{
		&research.ProgressEvent{Step: 1, ActionState: research.ActionState{Action: "search"}},
		&research.FinalEvent{Answer: "Because of the moon.", References: []string{"https://example.com"}},
	}}
	c, out, status := newTestPlainChat(client)
	defer c.Close()

	in := &scriptedInput{lines: []string{"", "Why tides?", "/details", "And waves?", "/quit", "never asked"}}
	require.NoError(t, c.Run(context.Background(), in))

	assert.True(t, in.closed)
	assert.Equal(t, []string{"Why tides?", "And waves?"}, client.asked)
	assert.Contains(t, status.String(), "Step 1 · search")
	assert.Contains(t, status.String(), "Details on.")
	assert.Contains(t, out.String(), "Because of the moon.")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("https://example.com")), "references only after /details")
}

func TestPlainChat_ErrorEvent(t *testing.T) {
	client := &scriptedClient{events: []research.Event{&research.ErrorEvent{Message: "agent failed"}}}
	c, out, _ := newTestPlainChat(client)
	defer c.Close()

	require.NoError(t, c.Run(context.Background(), &scriptedInput{lines: []string{"q"}}))
	assert.Contains(t, out.String(), "Error: agent failed")
}

func TestPlainChat_Commands(t *testing.T) {
	c, _, status := newTestPlainChat(&scriptedClient{})
	defer c.Close()

	require.NoError(t, c.Run(context.Background(), &scriptedInput{lines: []string{"/help", "/bogus", "/clear"}}))
	assert.Contains(t, status.String(), "/details")
	assert.Contains(t, status.String(), "Unknown command /bogus")
	assert.Contains(t, status.String(), "Conversation cleared.")
}
