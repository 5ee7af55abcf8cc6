// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/drchat/internal/session"
)

// Init starts the cursor blink and the relay probe.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, checkHealth(m.health)}
	if m.loading {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update handles terminal events and session snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case session.Update:
		return m, m.apply(msg)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.redrawSpinner()
		return m, cmd

	case HealthMsg:
		m.healthErr = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m, m.send()

	case key.Matches(msg, m.keys.Cancel):
		if m.loading && m.session != nil {
			return m, m.apply(m.session.Cancel())
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if m.session == nil {
			return m, nil
		}
		m.lastErr = nil
		return m, m.apply(m.session.Clear())

	case key.Matches(msg, m.keys.ToggleDetails):
		if m.session == nil {
			return m, nil
		}
		return m, m.apply(m.session.ToggleDetails())

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	// The input stays editable while a question is in flight.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send submits the input. Blank input does nothing.
func (m *Model) send() tea.Cmd {
	question := m.input.Value()
	if strings.TrimSpace(question) == "" || m.session == nil {
		return nil
	}
	u, ok := m.session.Ask(context.Background(), question)
	if !ok {
		return nil
	}
	m.input.Reset()
	m.lastErr = nil
	cmd := m.apply(u)
	m.viewport.GotoBottom()
	return cmd
}

// apply shows a session snapshot unless a newer one is already on screen.
// It returns the spinner tick when loading starts.
func (m *Model) apply(u session.Update) tea.Cmd {
	if u.Version < m.version {
		return nil
	}
	wasLoading := m.loading

	m.version = u.Version
	m.messages = u.Messages
	m.loading = u.Loading
	m.showDetails = u.ShowDetails
	if u.Done {
		m.lastErr = u.Err
	}
	m.refresh(false)

	if m.loading && !wasLoading {
		return m.spinner.Tick
	}
	return nil
}
