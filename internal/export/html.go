// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/render"
)

// goldmark is configured once; raw HTML in messages is dropped by default.
var (
	markdownConverter     goldmark.Markdown
	markdownConverterOnce sync.Once
)

func getMarkdownConverter() goldmark.Markdown {
	markdownConverterOnce.Do(func() {
		markdownConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownConverter
}

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := checkConversation(conv); err != nil {
		return nil, err
	}
	title := html.EscapeString(conv.Title())
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", title)
	fmt.Fprintf(&sb, "<meta name=\"generator\" content=\"%s\">\n", Generator)
	fmt.Fprintf(&sb, "<meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339))
	sb.WriteString(css)
	fmt.Fprintf(&sb, "</head>\n<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "<header class=\"header\">\n<h1>%s</h1>\n", title)
		fmt.Fprintf(&sb, "<div class=\"metadata\"><span><strong>Created:</strong> %s</span> <span><strong>Messages:</strong> %d</span></div>\n",
			formatTimestamp(conv.CreatedAt), conv.Len())
		sb.WriteString("</header>\n")
	}

	sb.WriteString("<main class=\"conversation\">\n")
	for _, msg := range conv.Messages() {
		body, err := e.renderMessage(msg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(body)
	}
	sb.WriteString("</main>\n")

	fmt.Fprintf(&sb, "<footer class=\"footer\"><p>Exported from <strong>%s</strong> on %s</p></footer>\n",
		Generator, time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// renderMessage converts one message's Markdown to an HTML block.
func (e *HTMLExporter) renderMessage(msg model.Message) (string, error) {
	var body bytes.Buffer
	if err := getMarkdownConverter().Convert([]byte(render.MessageMarkdown(msg, e.options.IncludeDetails)), &body); err != nil {
		return "", fmt.Errorf("convert message %s: %w", msg.ID, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<div class=\"message %s-message\">\n<div class=\"message-header\">", msg.Kind)
	fmt.Fprintf(&sb, "<span class=\"role-label\">%s</span>", html.EscapeString(msg.Kind.DisplayName()))
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		fmt.Fprintf(&sb, " <span class=\"timestamp\">%s</span>", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("</div>\n<div class=\"message-content\">\n")
	sb.Write(body.Bytes())
	sb.WriteString("</div>\n</div>\n")
	return sb.String(), nil
}

const css = `<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
.dark-theme {
  --bg: #1a1b26; --panel: #24283b; --text: #c0caf5; --muted: #565f89;
  --border: #414868; --user: #7dcfff; --assistant: #bb9af7; --progress: #e0af68; --error: #f7768e;
}
.light-theme {
  --bg: #ffffff; --panel: #f7f8fa; --text: #24292e; --muted: #6a737d;
  --border: #e1e4e8; --user: #0366d6; --assistant: #6f42c1; --progress: #b08800; --error: #d73a49;
}
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px; }
.container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
.header { padding: 24px 32px; border-bottom: 2px solid var(--border); }
.header h1 { font-size: 26px; margin-bottom: 8px; }
.metadata { font-size: 14px; color: var(--muted); display: flex; gap: 16px; }
.conversation { padding: 24px 32px; }
.message { margin-bottom: 20px; padding-left: 12px; border-left: 4px solid var(--border); }
.user-message { border-color: var(--user); }
.assistant-message { border-color: var(--assistant); }
.progress-message, .thinking-message { border-color: var(--progress); }
.error-message { border-color: var(--error); color: var(--error); }
.message-header { font-weight: 600; margin-bottom: 6px; }
.timestamp { font-weight: 400; font-size: 12px; color: var(--muted); margin-left: 8px; }
.message-content p, .message-content ul, .message-content pre { margin-bottom: 10px; }
.message-content ul { padding-left: 24px; }
.message-content h4 { margin: 10px 0 4px; }
pre { background: var(--bg); padding: 12px; border-radius: 6px; overflow-x: auto; }
code { font-family: "SF Mono", Consolas, monospace; font-size: 14px; }
a { color: var(--user); }
.footer { padding: 16px 32px; font-size: 13px; color: var(--muted); border-top: 1px solid var(--border); }
</style>
`
