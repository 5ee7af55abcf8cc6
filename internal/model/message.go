// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/drchat/internal/research"
)

// =============================================================================
// KIND TYPE
// =============================================================================

// Kind identifies what a message displays.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindError     Kind = "error"
	KindProgress  Kind = "progress"
	KindThinking  Kind = "thinking"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// DisplayName returns a human-readable label for the kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindUser:
		return "You"
	case KindAssistant:
		return "Assistant"
	case KindError:
		return "Error"
	case KindProgress:
		return "Research"
	case KindThinking:
		return "Thinking"
	default:
		return string(k)
	}
}

// Transient reports whether messages of this kind are replaced by the next
// stream event.
func (k Kind) Transient() bool {
	return k == KindProgress || k == KindThinking
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindAssistant, KindError, KindProgress, KindThinking:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of the display list.
//
// user, error and thinking messages carry Text; progress messages carry
// Progress; assistant messages carry Final.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Text     string                  `json:"text,omitempty"`
	Progress *research.ProgressEvent `json:"progress,omitempty"`
	Final    *research.FinalEvent    `json:"final,omitempty"`
}

func newMessage(kind Kind) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	m := newMessage(KindUser)
	m.Text = text
	return m
}

// NewThinkingMessage creates a thinking placeholder.
func NewThinkingMessage(text string) Message {
	m := newMessage(KindThinking)
	m.Text = text
	return m
}

// NewErrorMessage creates an error message.
func NewErrorMessage(text string) Message {
	m := newMessage(KindError)
	m.Text = text
	return m
}

// NewProgressMessage creates a progress message for a research step.
func NewProgressMessage(p *research.ProgressEvent) Message {
	m := newMessage(KindProgress)
	m.Progress = p
	return m
}

// NewAssistantMessage creates an assistant message for a final answer.
func NewAssistantMessage(f *research.FinalEvent) Message {
	m := newMessage(KindAssistant)
	m.Final = f
	return m
}

// Valid reports whether the content matches the kind and is present.
func (m Message) Valid() bool {
	switch m.Kind {
	case KindUser, KindError, KindThinking:
		return strings.TrimSpace(m.Text) != "" && m.Progress == nil && m.Final == nil
	case KindProgress:
		return m.Progress != nil && m.Final == nil
	case KindAssistant:
		return m.Final != nil && m.Progress == nil
	default:
		return false
	}
}

// PlainText returns the message as plain text for previews and search.
func (m Message) PlainText() string {
	switch m.Kind {
	case KindAssistant:
		if m.Final != nil {
			return m.Final.Answer
		}
	case KindProgress:
		if m.Progress != nil {
			return m.Progress.ActionState.Action
		}
	default:
		return m.Text
	}
	return ""
}
