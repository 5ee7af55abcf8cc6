// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/render"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/ui/styles"
)

// reportedError wraps a failure that was already shown to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

type askOptions struct {
	json      bool
	details   bool
	noHistory bool
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Long: `Ask one question, print each research step as it arrives and finish
with the final answer rendered as Markdown.

With --json every stream event is written to stdout as one JSON line.`,
		Example: `  drchat ask "What causes the northern lights?"
  drchat ask --details "Compare RAFT and Paxos"
  drchat ask --json "Latest Go release?" | jq .type`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.ask(ctx, strings.Join(args, " "), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print stream events as JSON lines")
	cmd.Flags().BoolVarP(&opts.details, "details", "d", false, "include thoughts, queries and references")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record the question in history")
	return cmd
}

// ask submits one question and streams its events.
func (a *app) ask(ctx context.Context, question string, opts askOptions, out, status io.Writer) error {
	question = research.NormalizeQuestion(question)
	if question == "" {
		return research.ErrEmptyQuestion
	}

	conv := model.NewConversation()
	conv.SetShowDetails(opts.details)
	conv.Submit(question)

	var printer *messagePrinter
	if !opts.json {
		printer = newMessagePrinter(out, status, a.answerRenderer(), opts.details)
		printer.Print(conv.Messages())
	}

	// A failed write to out stops the stream.
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	var failure, writeErr error
	handler := func(ev research.Event) {
		if writeErr != nil {
			return
		}
		conv.Apply(ev)
		if e, ok := ev.(*research.ErrorEvent); ok {
			failure = e
		}
		if opts.json {
			if err := writeEventLine(out, ev); err != nil {
				writeErr = err
				stopStream()
			}
			return
		}
		printer.Print(conv.Messages())
	}

	client := a.client()
	id, err := client.Submit(ctx, research.NewQueryRequest(question))
	if err != nil {
		conv.FailRequest(err)
		failure = err
	} else if err := client.Stream(streamCtx, id, handler); err != nil {
		switch {
		case writeErr != nil:
			conv.Abandon()
		case ctx.Err() != nil:
			conv.Abandon()
			return ctx.Err()
		default:
			conv.FailStream()
			failure = err
		}
	}

	if !opts.noHistory {
		a.record(conv)
	}
	if writeErr != nil {
		return fmt.Errorf("write event: %w", writeErr)
	}

	if failure == nil {
		return nil
	}
	if opts.json {
		return failure
	}
	printer.Print(conv.Messages())
	return &reportedError{err: failure}
}

func writeEventLine(w io.Writer, ev research.Event) error {
	data, err := research.EncodeEvent(ev)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// record saves a settled conversation when history is enabled.
func (a *app) record(conv *model.Conversation) {
	store, err := a.openStore(false)
	if err != nil {
		a.logger.Warn("history unavailable", "error", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := store.Save(ctx, conv); err != nil {
		a.logger.Warn("history save failed", "conversation", conv.ID, "error", err)
	}
}

// answerRenderer returns a terminal renderer when stdout is a terminal,
// otherwise nil so answers print as plain Markdown.
func (a *app) answerRenderer() *render.Renderer {
	if !IsStdoutTTY() {
		return nil
	}
	width := GetTerminalWidth()
	if a.cfg.UI.WordWrap > 0 && a.cfg.UI.WordWrap < width {
		width = a.cfg.UI.WordWrap
	}
	theme := styles.NewTheme(a.cfg.UI.Theme)
	return render.New(theme, styles.GlamourStyle(a.cfg.UI.Theme), width)
}

// isCancelled reports whether err came from an interrupted command.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
