// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/ui/styles"
)

const (
	// DefaultWidth is used until the terminal reports its size.
	DefaultWidth = 80

	// bodyIndent is the width taken by the body bar and padding.
	bodyIndent = 2

	minWidth = 20
)

// Renderer renders messages for the terminal. It is safe for concurrent use.
type Renderer struct {
	theme *styles.Theme
	style string

	mu    sync.Mutex
	width int
	md    *glamour.TermRenderer
}

// New creates a renderer. style is a glamour standard style name such as
// "dark", "light" or "notty", or "auto" to follow the terminal.
func New(theme *styles.Theme, style string, width int) *Renderer {
	if theme == nil {
		theme = styles.NewTheme(style)
	}
	r := &Renderer{theme: theme, style: style}
	r.SetWidth(width)
	return r
}

// SetWidth changes the wrap width, rebuilding the Markdown renderer.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if width < minWidth {
		width = minWidth
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.md != nil && r.width == width {
		return
	}
	r.width = width
	r.md = newTermRenderer(r.style, width-bodyIndent)
}

// Width returns the current wrap width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

func newTermRenderer(style string, wrap int) *glamour.TermRenderer {
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		// Plain text is shown when no renderer is available.
		return nil
	}
	return md
}

// Markdown renders text as Markdown, returning it unchanged on failure.
func (r *Renderer) Markdown(text string) string {
	r.mu.Lock()
	md := r.md
	var out string
	var err error
	if md != nil {
		out, err = md.Render(text)
	}
	r.mu.Unlock()

	if md == nil || err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Message renders m with its label line and styled body.
func (r *Renderer) Message(m model.Message, details bool) string {
	header := r.theme.LabelStyle(m.Kind).Render(m.Kind.DisplayName())
	if !m.Timestamp.IsZero() {
		header += "  " + r.theme.Timestamp.Render(m.Timestamp.Format("15:04:05"))
	}
	return header + "\n" + r.theme.BodyStyle(bodyKind(m)).Render(r.Body(m, details))
}

// Body renders the content of m without decoration.
func (r *Renderer) Body(m model.Message, details bool) string {
	switch {
	case !m.Valid():
		return InvalidText
	case Unexpected(m):
		return HighlightJSON(PrettyJSON(m.Final))
	case m.Kind == model.KindThinking:
		return m.Text
	default:
		return r.Markdown(MessageMarkdown(m, details))
	}
}

// Conversation renders msgs separated by blank lines.
func (r *Renderer) Conversation(msgs []model.Message, details bool) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Message(m, details))
	}
	return strings.Join(parts, "\n\n")
}

// bodyKind styles invalid messages as errors.
func bodyKind(m model.Message) model.Kind {
	if !m.Valid() {
		return model.KindError
	}
	return m.Kind
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// HighlightJSON applies JSON syntax highlighting for terminal output,
// returning the input unchanged on failure.
func HighlightJSON(code string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
