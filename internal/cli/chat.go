// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/render"
	"github.com/jeranaias/drchat/internal/session"
	"github.com/jeranaias/drchat/internal/storage"
	"github.com/jeranaias/drchat/internal/ui/chat"
	"github.com/jeranaias/drchat/internal/ui/styles"
)

type chatOptions struct {
	plain     bool
	resume    string
	noHistory bool
}

func newChatCmd(a *app) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive research chat",
		Long: `Start an interactive research chat.

The full-screen interface shows every research step as it streams in.
Enter sends, Alt+Enter inserts a newline, Ctrl+D toggles details, Esc stops
the current answer and Ctrl+C quits.

--plain (or a non-terminal stdin) uses a line-mode prompt instead.`,
		Example: `  drchat chat
  drchat chat --plain
  drchat chat --resume 3f2a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chat(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "line-mode prompt instead of the full-screen interface")
	cmd.Flags().StringVarP(&opts.resume, "resume", "r", "", "continue a conversation from history (ID or prefix)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record this chat in history")
	return cmd
}

func (a *app) chat(cmd *cobra.Command, opts chatOptions) error {
	ctx := cmd.Context()

	var store *storage.Store
	if !opts.noHistory || opts.resume != "" {
		var err error
		if store, err = a.openStore(opts.resume != ""); err != nil {
			return err
		}
	}
	if store != nil {
		defer store.Close()
	}

	var conv *model.Conversation
	if opts.resume != "" {
		var err error
		if conv, err = store.Load(ctx, opts.resume); err != nil {
			return err
		}
	}

	cfg := session.Config{Conversation: conv}
	if store != nil && !opts.noHistory {
		cfg.Recorder = store
	}

	if opts.plain || !IsTTY() || !IsStdoutTTY() {
		cfg.Logger = a.logger
		printer := newMessagePrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.answerRenderer(), a.cfg.UI.ShowDetails)
		c := newPlainChat(a.client(), cfg, printer, cmd.ErrOrStderr())
		defer c.Close()
		if conv != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(fmt.Sprintf("Resumed %q (%d messages)", conv.Title(), conv.Len())))
		}
		return c.Run(ctx, newLineReader())
	}
	return a.runTUI(cfg)
}

// runTUI runs the full-screen chat. Logs go to a file so the alternate
// screen stays clean.
func (a *app) runTUI(cfg session.Config) error {
	logPath, err := a.cfg.LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "drchat")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := newLogger(a.cfg.Logging, logFile)
	client := a.client().WithLogger(logger)

	theme := styles.NewTheme(a.cfg.UI.Theme)
	renderer := render.New(theme, styles.GlamourStyle(a.cfg.UI.Theme), render.DefaultWidth)

	// The program is created before any question can be asked, so the
	// stream goroutines always see it.
	var program *tea.Program
	cfg.Logger = logger
	cfg.OnUpdate = func(u session.Update) { program.Send(u) }
	sess := session.New(client, cfg)
	defer sess.Close()
	if a.cfg.UI.ShowDetails {
		sess.ToggleDetails()
	}

	m := chat.New(chat.Options{
		Session:  sess,
		Renderer: renderer,
		Theme:    theme,
		Health:   func(ctx context.Context) error { return client.Health(ctx) },
		Endpoint: a.cfg.Client.BaseURL,
	})
	program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	logger.Info("TUI_START", "endpoint", a.cfg.Client.BaseURL, "log", logPath)
	_, err = program.Run()
	return err
}
