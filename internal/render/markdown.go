// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/util"
)

// InvalidText replaces messages whose content is missing.
const InvalidText = "Invalid message data"

// MessageMarkdown returns the Markdown body of m. With details off, progress
// shows only the step header, gaps and the action; answers show only the
// answer text.
func MessageMarkdown(m model.Message, details bool) string {
	if !m.Valid() {
		return InvalidText
	}

	switch m.Kind {
	case model.KindProgress:
		return ProgressMarkdown(m.Progress, details)
	case model.KindAssistant:
		if strings.TrimSpace(m.Final.Answer) == "" {
			return "```json\n" + PrettyJSON(m.Final) + "\n```"
		}
		return FinalMarkdown(m.Final, details)
	default:
		return m.Text
	}
}

// Unexpected reports whether m must be shown as raw JSON: an answer event
// without answer text.
func Unexpected(m model.Message) bool {
	return m.Valid() && m.Kind == model.KindAssistant && strings.TrimSpace(m.Final.Answer) == ""
}

// ProgressMarkdown renders one research step.
func ProgressMarkdown(p *research.ProgressEvent, details bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "**Step %d**\n\n", p.Step)
	if p.BudgetUsed != nil {
		fmt.Fprintf(&sb, "Budget used: %s\n\n", util.FormatPercent(*p.BudgetUsed))
	}

	if len(p.Gaps) > 0 {
		writeList(&sb, "Gaps:", p.Gaps)
	}

	as := p.ActionState
	fmt.Fprintf(&sb, "Action: %s\n\n", as.Action)

	if details {
		writeSection(&sb, "Thoughts:", as.Thoughts)
		if as.SearchQuery != "" {
			writeSection(&sb, "Search Query:", as.SearchQuery)
		}
		if as.Answer != "" {
			writeSection(&sb, "Current Answer:", as.Answer)
		}
		if len(as.URLTargets) > 0 {
			writeList(&sb, "URLs:", as.URLTargets)
		}
		if len(as.QuestionsToAnswer) > 0 {
			writeList(&sb, "Questions to Answer:", as.QuestionsToAnswer)
		}

		tr := p.Trackers
		if tr.TokenUsage != 0 {
			fmt.Fprintf(&sb, "Token Usage: %s\n\n", util.FormatCount(tr.TokenUsage))
		}
		if b := tr.TokenBreakdown; b != nil {
			if b.Agent != 0 {
				fmt.Fprintf(&sb, "Agent: %s\n\n", util.FormatCount(b.Agent))
			}
			if b.Read != 0 {
				fmt.Fprintf(&sb, "Read: %s\n\n", util.FormatCount(b.Read))
			}
		}

		if ev := p.Evaluation; ev != nil {
			sb.WriteString("#### Evaluation:\n\n")
			fmt.Fprintf(&sb, "**Definitive:** %s\n\n", yesNo(ev.Definitive))
			if ev.Reason != "" {
				fmt.Fprintf(&sb, "**Reason:** %s\n\n", ev.Reason)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FinalMarkdown renders the final answer.
func FinalMarkdown(f *research.FinalEvent, details bool) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(f.Answer))
	sb.WriteString("\n\n")

	if details {
		if f.Thoughts != "" {
			writeSection(&sb, "Thoughts:", f.Thoughts)
		}
		if len(f.References) > 0 {
			writeList(&sb, "References:", f.References)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// PrettyJSON indents v with two spaces.
func PrettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func writeSection(sb *strings.Builder, title, body string) {
	fmt.Fprintf(sb, "#### %s\n\n", title)
	if body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
}

func writeList(sb *strings.Builder, title string, items []string) {
	fmt.Fprintf(sb, "#### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", util.OneLine(item))
	}
	sb.WriteString("\n")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
