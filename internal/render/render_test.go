// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/ui/styles"
)

func fullProgress() *research.ProgressEvent {
	used := 0.1234
	return &research.ProgressEvent{
		Step:       4,
		BudgetUsed: &used,
		Gaps:       []string{"What drives tides?"},
		ActionState: research.ActionState{
			Action:            "search",
			Thoughts:          "Need sources on lunar gravity.",
			SearchQuery:       "lunar tide mechanism",
			Answer:            "Mostly the Moon.",
			URLTargets:        []string{"https://example.com/tides"},
			QuestionsToAnswer: []string{"Role of the Sun?"},
		},
		Trackers: research.Trackers{
			TokenUsage:     12000,
			TokenBreakdown: &research.TokenBreakdown{Agent: 9000, Read: 3000},
		},
		Evaluation: &research.Evaluation{Definitive: false, Reason: "no citation"},
	}
}

// =============================================================================
// MARKDOWN TESTS
// =============================================================================

func TestProgressMarkdown_Collapsed(t *testing.T) {
	md := MessageMarkdown(model.NewProgressMessage(fullProgress()), false)

	assert.Contains(t, md, "Step 4")
	assert.Contains(t, md, "Budget used: 12.34%")
	assert.Contains(t, md, "Gaps:")
	assert.Contains(t, md, "- What drives tides?")
	assert.Contains(t, md, "Action: search")

	for _, hidden := range []string{"Thoughts:", "Search Query:", "Current Answer:", "URLs:",
		"Questions to Answer:", "Token Usage:", "Evaluation:"} {
		assert.NotContains(t, md, hidden)
	}
}

func TestProgressMarkdown_Details(t *testing.T) {
	md := MessageMarkdown(model.NewProgressMessage(fullProgress()), true)

	for _, want := range []string{
		"Thoughts:", "Need sources on lunar gravity.",
		"Search Query:", "lunar tide mechanism",
		"Current Answer:", "Mostly the Moon.",
		"URLs:", "- https://example.com/tides",
		"Questions to Answer:", "- Role of the Sun?",
		"Token Usage: 12,000", "Agent: 9,000", "Read: 3,000",
		"Evaluation:", "**Definitive:** No", "**Reason:** no citation",
	} {
		assert.Contains(t, md, want)
	}
}

func TestProgressMarkdown_OptionalFields(t *testing.T) {
	p := &research.ProgressEvent{Step: 1, ActionState: research.ActionState{Action: "reflect"}}
	md := ProgressMarkdown(p, true)

	assert.NotContains(t, md, "Budget used")
	assert.NotContains(t, md, "Gaps:")
	assert.NotContains(t, md, "Token Usage")
	assert.NotContains(t, md, "Evaluation")
	assert.Contains(t, md, "Thoughts:")

	zero := 0.0
	p.BudgetUsed = &zero
	assert.Contains(t, ProgressMarkdown(p, false), "Budget used: 0.00%")
}

func TestFinalMarkdown(t *testing.T) {
	f := &research.FinalEvent{
		Answer:     "## Tides\nThe Moon pulls the oceans.",
		Thoughts:   "Cross-checked two sources.",
		References: []string{"https://example.com/a"},
	}
	m := model.NewAssistantMessage(f)

	collapsed := MessageMarkdown(m, false)
	assert.True(t, strings.HasPrefix(collapsed, "## Tides"))
	assert.NotContains(t, collapsed, "References:")

	expanded := MessageMarkdown(m, true)
	assert.Contains(t, expanded, "Thoughts:")
	assert.Contains(t, expanded, "- https://example.com/a")
}

func TestMessageMarkdown_InvalidAndUnexpected(t *testing.T) {
	assert.Equal(t, InvalidText, MessageMarkdown(model.NewUserMessage(""), false))
	assert.Equal(t, InvalidText, MessageMarkdown(model.NewProgressMessage(nil), true))

	empty := model.NewAssistantMessage(&research.FinalEvent{References: []string{"r"}})
	assert.True(t, Unexpected(empty))
	md := MessageMarkdown(empty, false)
	assert.True(t, strings.HasPrefix(md, "```json\n{"))
	assert.Contains(t, md, `"references": [`)

	assert.Equal(t, "hello *world*", MessageMarkdown(model.NewUserMessage("hello *world*"), false))
}

// =============================================================================
// RENDERER TESTS
// =============================================================================

func TestRenderer_Message(t *testing.T) {
	r := New(styles.NewTheme("dark"), "notty", 60)

	out := r.Message(model.NewProgressMessage(fullProgress()), false)
	assert.Contains(t, out, "Research")
	assert.Contains(t, out, "Step 4")
	assert.Contains(t, out, "Action: search")

	out = r.Message(model.NewUserMessage(""), false)
	assert.Contains(t, out, InvalidText)

	out = r.Message(model.NewThinkingMessage(model.ThinkingText), false)
	assert.Contains(t, out, model.ThinkingText)
}

func TestRenderer_Conversation(t *testing.T) {
	r := New(nil, "notty", 0)
	assert.Equal(t, DefaultWidth, r.Width())

	c := model.NewConversation()
	c.Submit("Why is the sky blue?")
	c.Apply(&research.FinalEvent{Answer: "Rayleigh scattering."})

	out := r.Conversation(c.Messages(), false)
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "Why is the sky blue?")
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "Rayleigh scattering.")
}

func TestRenderer_SetWidthClamps(t *testing.T) {
	r := New(nil, "notty", 5)
	assert.Equal(t, minWidth, r.Width())
	r.SetWidth(120)
	assert.Equal(t, 120, r.Width())
}

func TestHighlightJSON(t *testing.T) {
	out := HighlightJSON(`{"a": 1}`)
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"a"`)
}
