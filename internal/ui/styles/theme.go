// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/drchat/internal/model"
)

// Theme holds the styles of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderHint  lipgloss.Style

	// Message labels and bodies
	Label     map[model.Kind]lipgloss.Style
	Body      map[model.Kind]lipgloss.Style
	Timestamp lipgloss.Style
	Separator lipgloss.Style

	// Input area
	InputBorder        lipgloss.Style
	InputBorderFocused lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusActive lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme creates a theme for the given mode: "dark", "light" or "auto".
func NewTheme(mode string) *Theme {
	switch mode {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		ColorProfile: lipgloss.ColorProfile(),
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style name matching mode.
func GlamourStyle(mode string) string {
	switch mode {
	case "dark", "light":
		return mode
	default:
		return "auto"
	}
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	label := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(c)
	}
	t.Label = map[model.Kind]lipgloss.Style{
		model.KindUser:      label(Cyan),
		model.KindAssistant: label(Purple),
		model.KindError:     label(Rose),
		model.KindProgress:  label(Amber),
		model.KindThinking:  label(TextSecondary),
	}

	bar := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(c).
			PaddingLeft(1)
	}
	t.Body = map[model.Kind]lipgloss.Style{
		model.KindUser:      bar(Cyan),
		model.KindAssistant: bar(Purple),
		model.KindError:     bar(Rose).Foreground(Rose),
		model.KindProgress:  bar(Amber),
		model.KindThinking:  bar(Overlay).Foreground(TextSecondary).Italic(true),
	}

	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Separator = lipgloss.NewStyle().Foreground(Overlay)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputBorderFocused = t.InputBorder.
		BorderForeground(Purple)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusActive = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
}

// LabelStyle returns the label style for kind, falling back to muted text.
func (t *Theme) LabelStyle(kind model.Kind) lipgloss.Style {
	if s, ok := t.Label[kind]; ok {
		return s
	}
	return lipgloss.NewStyle().Foreground(TextMuted)
}

// BodyStyle returns the body style for kind.
func (t *Theme) BodyStyle(kind model.Kind) lipgloss.Style {
	if s, ok := t.Body[kind]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
