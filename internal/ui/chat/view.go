// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/drchat/internal/util"
)

// Labels of the global details switch.
const (
	ShowDetailsLabel = "Show All Details"
	HideDetailsLabel = "Hide All Details"
)

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.inputView())
	b.WriteString("\n")
	if m.help.ShowAll {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(m.statusView())
	}
	return b.String()
}

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render(Title)
	if m.endpoint != "" {
		title += "  " + m.theme.HeaderHint.Render(m.endpoint)
	}
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(title)
}

func (m Model) inputView() string {
	style := m.theme.InputBorderFocused
	if m.loading {
		style = m.theme.InputBorder
	}
	return style.Width(max(m.width-inputChrome, 1)).Render(m.input.View())
}

// statusView shows the request state, the details switch and key hints.
func (m Model) statusView() string {
	var state string
	switch {
	case m.loading:
		state = m.theme.StatusActive.Render(m.spinner.View() + " Researching")
	case m.lastErr != nil:
		msg := util.TruncateWidth(util.OneLine(m.lastErr.Error()), max(m.width/2, 10))
		state = m.theme.StatusError.Render("Error: " + msg)
	case m.healthErr != nil:
		state = m.theme.StatusError.Render("Relay unreachable")
	default:
		state = m.theme.ShortcutDesc.Render("Ready")
	}

	details := ShowDetailsLabel
	if m.showDetails {
		details = HideDetailsLabel
	}
	toggle := m.theme.ShortcutKey.Render(m.keys.ToggleDetails.Help().Key) + " " +
		m.theme.ShortcutDesc.Render(details)

	left := state + "  " + toggle
	right := m.help.ShortHelpView(m.keys.ShortHelp())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	line := left
	if gap > 0 {
		line += strings.Repeat(" ", gap) + right
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(statusHeight).Render(line)
}
