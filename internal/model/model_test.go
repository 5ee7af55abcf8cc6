// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/drchat/internal/research"
)

func kinds(c *Conversation) []Kind {
	var out []Kind
	for _, m := range c.Messages() {
		out = append(out, m.Kind)
	}
	return out
}

func progress(step int) *research.ProgressEvent {
	return &research.ProgressEvent{Step: step, ActionState: research.ActionState{Action: "search"}}
}

// =============================================================================
// MERGE RULE TESTS
// =============================================================================

func TestSubmit(t *testing.T) {
	c := NewConversation()

	assert.False(t, c.Submit("   \n"))
	assert.True(t, c.IsEmpty())

	require.True(t, c.Submit("  Why is the sky blue?  "))
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindUser, msgs[0].Kind)
	assert.Equal(t, "Why is the sky blue?", msgs[0].Text)
	assert.Equal(t, KindThinking, msgs[1].Kind)
	assert.Equal(t, ThinkingText, msgs[1].Text)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestApplyProgress_ReplacesTransient(t *testing.T) {
	c := NewConversation()
	c.Submit("q")

	c.ApplyProgress(progress(1))
	assert.Equal(t, []Kind{KindUser, KindProgress}, kinds(c))

	c.ApplyProgress(progress(2))
	assert.Equal(t, []Kind{KindUser, KindProgress}, kinds(c))
	assert.Equal(t, 2, c.Messages()[1].Progress.Step)
}

func TestApplyFinal_ReplacesTransient(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.ApplyProgress(progress(1))

	terminal := c.Apply(&research.FinalEvent{Answer: "blue light scatters"})
	assert.True(t, terminal)
	assert.Equal(t, []Kind{KindUser, KindAssistant}, kinds(c))
	assert.Equal(t, "blue light scatters", c.Messages()[1].Final.Answer)
	assert.True(t, c.Finished())
}

func TestApplyError_KeepsTransient(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.ApplyProgress(progress(1))

	terminal := c.Apply(&research.ErrorEvent{Message: "budget exhausted"})
	assert.True(t, terminal)
	assert.Equal(t, []Kind{KindUser, KindProgress, KindError}, kinds(c))
	assert.Equal(t, "budget exhausted", c.Messages()[2].Text)
}

func TestFailStream(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.ApplyProgress(progress(1))

	c.FailStream()
	assert.Equal(t, []Kind{KindUser, KindError}, kinds(c))
	assert.Equal(t, StreamFailureText, c.Messages()[1].Text)
}

func TestFailRequest(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.FailRequest(errors.New("Failed to send message"))
	assert.Equal(t, []Kind{KindUser, KindError}, kinds(c))
	assert.Equal(t, "Failed to send message", c.Messages()[1].Text)

	c.Submit("again")
	c.FailRequest(nil)
	assert.Equal(t, RequestFailureText, c.Messages()[3].Text)
}

func TestApply_ProgressNotTerminal(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	assert.False(t, c.Apply(progress(1)))
	assert.False(t, c.Finished())
}

func TestSecondQuestionKeepsHistory(t *testing.T) {
	c := NewConversation()
	c.Submit("first")
	c.Apply(&research.FinalEvent{Answer: "one"})
	c.Submit("second")
	c.Apply(progress(1))

	assert.Equal(t, []Kind{KindUser, KindAssistant, KindUser, KindProgress}, kinds(c))
}

// =============================================================================
// ACCESSOR TESTS
// =============================================================================

func TestMessages_ReturnsCopy(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	msgs := c.Messages()
	msgs[0].Text = "mutated"
	assert.Equal(t, "q", c.Messages()[0].Text)
}

func TestTitle(t *testing.T) {
	c := NewConversation()
	assert.Equal(t, "New research", c.Title())

	c.Submit("What\nis " + strings.Repeat("very ", 20) + "long?")
	title := c.Title()
	assert.True(t, strings.HasPrefix(title, "What is very"))
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len([]rune(title)), MaxTitleLength)
}

func TestClearAndDetails(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.Clear()
	assert.Equal(t, 0, c.Len())

	assert.False(t, c.ShowDetails())
	assert.True(t, c.ToggleDetails())
	assert.False(t, c.ToggleDetails())
}

func TestMessageValid(t *testing.T) {
	assert.True(t, NewUserMessage("hi").Valid())
	assert.False(t, NewUserMessage(" ").Valid())
	assert.True(t, NewProgressMessage(progress(1)).Valid())
	assert.False(t, NewProgressMessage(nil).Valid())
	assert.True(t, NewAssistantMessage(&research.FinalEvent{}).Valid())
	assert.False(t, Message{Kind: "system", Text: "x"}.Valid())

	mixed := NewUserMessage("hi")
	mixed.Final = &research.FinalEvent{}
	assert.False(t, mixed.Valid())
}

func TestRestore(t *testing.T) {
	c := NewConversation()
	c.Submit("q")
	c.Apply(&research.FinalEvent{Answer: "a"})

	r := Restore(c.ID, c.CreatedAt, c.UpdatedAt, c.Messages())
	assert.Equal(t, c.ID, r.ID)
	assert.Equal(t, c.Messages(), r.Messages())
}
