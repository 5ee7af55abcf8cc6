// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs research questions against the backend with at most
// one active stream.
//
// A Session owns a model.Conversation. Ask appends the question, submits it
// and streams the events into the conversation from a background goroutine.
// A new Ask closes the previous stream first; events that arrive from a
// replaced stream are dropped. Every change is published as an Update
// carrying a version number so receivers can discard stale snapshots.
//
// # Usage
//
//	s := session.New(client, session.Config{
//	    OnUpdate: func(u session.Update) { program.Send(u) },
//	    Recorder: store,
//	})
//	defer s.Close()
//	s.Ask(ctx, "How do tides work?")
//
// OnUpdate is only called from stream goroutines, never from Ask, Cancel or
// Clear, so it may block on a UI event loop that calls back into the Session.
package session
