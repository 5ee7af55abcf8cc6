// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation display list.
//
// A Conversation is a flat, ordered list of display messages. Each message
// has a kind (user, assistant, error, progress, thinking) and a content
// payload matching that kind. Research stream events are merged into the
// list with fixed rules: progress and thinking placeholders are transient
// and replaced by each new step, a final answer replaces them for good, and
// errors are appended.
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Submit("What causes auroras?")
//	conv.Apply(progressEvent)
//	done := conv.Apply(finalEvent) // true
//
// Conversation is not safe for concurrent use; the session package guards
// it with a mutex.
package model
