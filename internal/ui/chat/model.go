// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/render"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/session"
	"github.com/jeranaias/drchat/internal/ui/styles"
)

// Texts shown by the chat view.
const (
	Title       = "Deep Research Chat"
	Placeholder = "Ask a question..."
	LoadingText = "Thinking..."
	EmptyText   = "Ask a question to start a research session."
)

const (
	inputHeight = 3
	// headerHeight and statusHeight are single lines; the input adds a border.
	headerHeight = 1
	statusHeight = 1
	inputChrome  = 2
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the part of session.Session the chat drives.
type Controller interface {
	Ask(ctx context.Context, question string) (session.Update, bool)
	Cancel() session.Update
	Clear() session.Update
	ToggleDetails() session.Update
	Snapshot() session.Update
}

// Options configures a Model.
type Options struct {
	Session  Controller
	Renderer *render.Renderer
	Theme    *styles.Theme
	KeyMap   *KeyMap

	// Health probes the relay once at startup. Optional.
	Health func(context.Context) error

	// Endpoint is shown in the header.
	Endpoint string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	session  Controller
	renderer *render.Renderer
	theme    *styles.Theme
	keys     KeyMap
	help     help.Model

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// Last snapshot applied.
	version     uint64
	messages    []model.Message
	loading     bool
	showDetails bool
	lastErr     error

	// rendered caches the conversation so spinner frames skip glamour.
	rendered string

	health    func(context.Context) error
	healthErr error
	endpoint  string
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New(theme, "auto", render.DefaultWidth)
	}
	keys := DefaultKeyMap()
	if opts.KeyMap != nil {
		keys = *opts.KeyMap
	}

	ta := textarea.New()
	ta.Placeholder = Placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = research.MaxQuestionLength
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = theme.Spinner

	m := Model{
		session:  opts.Session,
		renderer: renderer,
		theme:    theme,
		keys:     keys,
		help:     help.New(),
		viewport: viewport.New(render.DefaultWidth, 10),
		input:    ta,
		spinner:  sp,
		health:   opts.Health,
		endpoint: opts.Endpoint,
	}
	if m.session != nil {
		m.apply(m.session.Snapshot())
	}
	return m
}

// Messages returns the messages currently on screen.
func (m Model) Messages() []model.Message {
	return m.messages
}

// Loading reports whether a question is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Input returns the current question text.
func (m Model) Input() string {
	return m.input.Value()
}

// Err returns the failure that settled the last question.
func (m Model) Err() error {
	return m.lastErr
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	m.input.SetWidth(max(width-inputChrome, 1))
	m.renderer.SetWidth(width - 1)
	m.help.Width = width

	vh := height - headerHeight - statusHeight - inputHeight - inputChrome
	m.viewport.Width = width
	m.viewport.Height = max(vh, 1)
	m.refresh(false)
}

// refresh re-renders the conversation. The view follows new output when
// follow is set or it was already at the bottom.
func (m *Model) refresh(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.rendered = m.renderConversation()
	m.viewport.SetContent(m.content())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// redrawSpinner updates the loading line and leaves the scroll position alone.
func (m *Model) redrawSpinner() {
	m.viewport.SetContent(m.content())
}

func (m Model) renderConversation() string {
	if len(m.messages) == 0 {
		return m.theme.Timestamp.Render(EmptyText)
	}
	return m.renderer.Conversation(m.messages, m.showDetails)
}

func (m Model) content() string {
	if len(m.messages) == 0 || !m.loading {
		return m.rendered
	}
	return m.rendered + "\n\n" + m.spinner.View() + " " + m.theme.Timestamp.Render(LoadingText)
}
