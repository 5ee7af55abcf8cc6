// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies an event in the stream vocabulary.
type Kind string

const (
	KindProgress Kind = "progress"
	KindFinal    Kind = "final"
	KindError    Kind = "error"
)

// Terminal reports whether an event of this kind ends the stream.
func (k Kind) Terminal() bool {
	return k == KindFinal || k == KindError
}

// Event is one decoded stream payload.
type Event interface {
	Kind() Kind
}

// ProgressEvent reports an intermediate research step.
type ProgressEvent struct {
	Type        Kind        `json:"type"`
	Step        int         `json:"step"`
	BudgetUsed  *float64    `json:"budgetUsed,omitempty"`
	Trackers    Trackers    `json:"trackers"`
	ActionState ActionState `json:"actionState"`
	BadAttempts *int        `json:"badAttempts,omitempty"`
	Gaps        []string    `json:"gaps,omitempty"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`
}

// Kind implements Event.
func (*ProgressEvent) Kind() Kind { return KindProgress }

// FinalEvent carries the final answer.
type FinalEvent struct {
	Type       Kind     `json:"type"`
	Answer     string   `json:"answer"`
	Thoughts   string   `json:"thoughts,omitempty"`
	References []string `json:"references,omitempty"`
}

// Kind implements Event.
func (*FinalEvent) Kind() Kind { return KindFinal }

// ErrorEvent reports a backend failure.
type ErrorEvent struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// Kind implements Event.
func (*ErrorEvent) Kind() Kind { return KindError }

// Error lets an ErrorEvent travel as an error value.
func (e *ErrorEvent) Error() string {
	return e.Message
}

// ErrUnknownEventType is returned by DecodeEvent for payloads whose type is
// outside the vocabulary. Consumers skip such events.
var ErrUnknownEventType = errors.New("unknown event type")

// DecodeEvent decodes a stream payload, dispatching on its "type" field.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var ev Event
	switch head.Type {
	case KindProgress:
		ev = &ProgressEvent{}
	case KindFinal:
		ev = &FinalEvent{}
	case KindError:
		ev = &ErrorEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Type, err)
	}
	return ev, nil
}

// EncodeEvent marshals an event with its type tag set.
func EncodeEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case *ProgressEvent:
		e.Type = KindProgress
	case *FinalEvent:
		e.Type = KindFinal
	case *ErrorEvent:
		e.Type = KindError
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}
	return json.Marshal(ev)
}
