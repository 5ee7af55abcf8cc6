// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRequestID is returned when the submit response lacks a request ID.
	// The text is shown to the user verbatim.
	ErrNoRequestID = errors.New("No request ID received") //nolint:staticcheck // user-facing text

	// ErrStreamClosed is returned when the stream ends before a final or
	// error event.
	ErrStreamClosed = errors.New("stream closed before a final answer")
)

// APIError is a non-2xx reply from the research API.
type APIError struct {
	Status  int
	Message string // server "error" field
	Details string // server "details" field or raw body
}

// Error returns the text shown in the conversation.
func (e *APIError) Error() string {
	return "Failed to send message"
}

// Detail describes the failure for logs.
func (e *APIError) Detail() string {
	switch {
	case e.Message != "" && e.Details != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.Status, e.Message, e.Details)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	case e.Details != "":
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Details)
	default:
		return fmt.Sprintf("HTTP %d", e.Status)
	}
}

// StreamError is a transport failure while reading events.
type StreamError struct {
	RequestID string
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.RequestID, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
