// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/render"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/util"
)

// messagePrinter writes conversation messages in line mode. Each message is
// printed once: progress and thinking lines go to status, answers and
// errors to out.
type messagePrinter struct {
	out    io.Writer
	status io.Writer

	// renderer formats answers for a terminal; nil prints raw Markdown.
	renderer *render.Renderer
	details  bool

	printed map[string]bool
}

func newMessagePrinter(out, status io.Writer, renderer *render.Renderer, details bool) *messagePrinter {
	return &messagePrinter{
		out:      out,
		status:   status,
		renderer: renderer,
		details:  details,
		printed:  make(map[string]bool),
	}
}

// Print writes every message not printed before. User messages are only
// marked, the user has just typed them.
func (p *messagePrinter) Print(msgs []model.Message) {
	for _, m := range msgs {
		if p.printed[m.ID] {
			continue
		}
		p.printed[m.ID] = true
		p.print(m)
	}
}

// Skip marks messages as printed without writing them.
func (p *messagePrinter) Skip(msgs []model.Message) {
	for _, m := range msgs {
		p.printed[m.ID] = true
	}
}

func (p *messagePrinter) print(m model.Message) {
	switch m.Kind {
	case model.KindUser:
	case model.KindThinking:
		fmt.Fprintln(p.status, dimStyle.Render(m.Text))
	case model.KindProgress:
		if m.Progress != nil {
			fmt.Fprintln(p.status, progressLine(m.Progress))
		}
	case model.KindError:
		fmt.Fprintln(p.out, errorStyle.Render("Error:"), m.Text)
	default:
		fmt.Fprintln(p.out, p.body(m))
	}
}

func (p *messagePrinter) body(m model.Message) string {
	if p.renderer != nil {
		return p.renderer.Body(m, p.details)
	}
	return render.MessageMarkdown(m, p.details)
}

// progressLine summarizes a step on one line.
func progressLine(ev *research.ProgressEvent) string {
	parts := []string{stepStyle.Render(fmt.Sprintf("Step %d", ev.Step))}
	if action := ev.ActionState.Action; action != "" {
		parts = append(parts, action)
	}
	if ev.BudgetUsed != nil {
		parts = append(parts, dimStyle.Render(util.FormatPercent(*ev.BudgetUsed)+" budget"))
	}
	if ev.Trackers.TokenUsage > 0 {
		parts = append(parts, dimStyle.Render(util.FormatCount(ev.Trackers.TokenUsage)+" tokens"))
	}
	return strings.Join(parts, " · ")
}
