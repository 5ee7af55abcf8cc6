// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/util"
)

// Texts shown by the merge rules.
const (
	ThinkingText       = "Analyzing your question..."
	StreamFailureText  = "An error occurred while fetching the response."
	RequestFailureText = "An error occurred"
)

// MaxTitleLength bounds the derived conversation title in runes.
const MaxTitleLength = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the display list of a chat session.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	messages    []Message
	showDetails bool
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Restore rebuilds a conversation from stored messages.
func Restore(id string, createdAt, updatedAt time.Time, messages []Message) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		messages:  append([]Message(nil), messages...),
	}
}

// =============================================================================
// MERGE RULES
// =============================================================================

// Submit appends the question and a thinking placeholder. Blank questions
// are ignored and reported with false.
func (c *Conversation) Submit(question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return false
	}
	c.append(NewUserMessage(question), NewThinkingMessage(ThinkingText))
	return true
}

// ApplyProgress replaces all transient messages with the step.
func (c *Conversation) ApplyProgress(p *research.ProgressEvent) {
	c.dropTransient()
	c.append(NewProgressMessage(p))
}

// ApplyFinal replaces all transient messages with the answer.
func (c *Conversation) ApplyFinal(f *research.FinalEvent) {
	c.dropTransient()
	c.append(NewAssistantMessage(f))
}

// ApplyError appends a backend error. Transient messages stay in place.
func (c *Conversation) ApplyError(message string) {
	c.append(NewErrorMessage(message))
}

// FailStream records a transport failure of the event stream.
func (c *Conversation) FailStream() {
	c.dropTransient()
	c.append(NewErrorMessage(StreamFailureText))
}

// FailRequest records a failure to submit the question.
func (c *Conversation) FailRequest(err error) {
	c.dropTransient()
	text := RequestFailureText
	if err != nil && err.Error() != "" {
		text = err.Error()
	}
	c.append(NewErrorMessage(text))
}

// Abandon removes transient messages left by a stream the user cancelled.
func (c *Conversation) Abandon() {
	c.dropTransient()
	c.UpdatedAt = time.Now()
}

// Apply merges a stream event and reports whether it ended the stream.
// Events of unknown type are ignored.
func (c *Conversation) Apply(ev research.Event) bool {
	switch e := ev.(type) {
	case *research.ProgressEvent:
		c.ApplyProgress(e)
	case *research.FinalEvent:
		c.ApplyFinal(e)
	case *research.ErrorEvent:
		c.ApplyError(e.Message)
	default:
		return false
	}
	return ev.Kind().Terminal()
}

func (c *Conversation) append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
	c.UpdatedAt = time.Now()
}

func (c *Conversation) dropTransient() {
	c.messages = lo.Filter(c.messages, func(m Message, _ int) bool {
		return !m.Kind.Transient()
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns a copy of the display list.
func (c *Conversation) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.messages = nil
	c.UpdatedAt = time.Now()
}

// Title derives a title from the first user message.
func (c *Conversation) Title() string {
	first, ok := lo.Find(c.messages, func(m Message) bool {
		return m.Kind == KindUser
	})
	if !ok {
		return "New research"
	}
	return util.TruncateRunes(util.OneLine(first.Text), MaxTitleLength)
}

// Finished reports whether the conversation holds a settled answer, i.e. the
// last message is neither a progress step nor a thinking placeholder.
func (c *Conversation) Finished() bool {
	if len(c.messages) == 0 {
		return false
	}
	return !c.messages[len(c.messages)-1].Kind.Transient()
}

// ShowDetails reports the global details switch.
func (c *Conversation) ShowDetails() bool {
	return c.showDetails
}

// SetShowDetails sets the global details switch.
func (c *Conversation) SetShowDetails(show bool) {
	c.showDetails = show
}

// ToggleDetails flips the global details switch and returns the new value.
func (c *Conversation) ToggleDetails() bool {
	c.showDetails = !c.showDetails
	return c.showDetails
}
