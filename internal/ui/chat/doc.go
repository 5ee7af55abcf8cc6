// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive research chat for Bubble Tea.
//
// The Model owns the viewport, the question input and the status bar. All
// conversation state lives in a session.Session; the Model only renders the
// snapshots it receives. Wire the session to the program like this:
//
//	var p *tea.Program
//	s := session.New(client, session.Config{
//	    OnUpdate: func(u session.Update) { p.Send(u) },
//	})
//	p = tea.NewProgram(chat.New(chat.Options{Session: s, ...}))
//
// Snapshots carry a version; older snapshots than the one on screen are
// ignored so a slow stream goroutine can never roll the view back.
package chat
