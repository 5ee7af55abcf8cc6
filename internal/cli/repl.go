// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/drchat/internal/config"
	"github.com/jeranaias/drchat/internal/session"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputReader reads one line of user input.
type inputReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// lineReader provides input history and line editing for plain chat.
type lineReader struct {
	line        *liner.State
	historyFile string
}

// newLineReader creates a line editor with history loaded from the config
// directory.
func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &lineReader{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput reads a line with the given prompt. Non-blank input is added
// to history.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// PLAIN CHAT LOOP
// =============================================================================

const plainHelp = `Commands:
  /details   toggle research details
  /clear     start over
  /help      show this help
  /quit      leave (also Ctrl+C or Ctrl+D at the prompt)
Ctrl+C while an answer is streaming stops it.`

// plainChat is the line-mode chat loop.
type plainChat struct {
	sess    *session.Session
	updates chan session.Update
	done    chan struct{}
	printer *messagePrinter
	status  io.Writer

	// minVersion hides snapshots queued by a replaced question.
	minVersion uint64

	// interrupt delivers Ctrl+C while an answer streams.
	interrupt func() (<-chan os.Signal, func())
}

func newPlainChat(client session.Client, cfg session.Config, printer *messagePrinter, status io.Writer) *plainChat {
	c := &plainChat{
		updates:   make(chan session.Update, 16),
		done:      make(chan struct{}),
		printer:   printer,
		status:    status,
		interrupt: notifyInterrupt,
	}
	cfg.OnUpdate = func(u session.Update) {
		select {
		case c.updates <- u:
		case <-c.done:
		}
	}
	c.sess = session.New(client, cfg)
	if printer.details {
		c.sess.ToggleDetails()
	}
	printer.Skip(c.sess.Snapshot().Messages)
	return c
}

func notifyInterrupt() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// Close stops the active stream and waits for it.
func (c *plainChat) Close() {
	close(c.done)
	c.sess.Close()
}

// Run reads questions until the user quits.
func (c *plainChat) Run(ctx context.Context, in inputReader) error {
	defer in.Close()
	fmt.Fprintln(c.status, dimStyle.Render("Type a question, or /help. Ctrl+D quits."))

	for {
		input, err := in.ReadInput(promptStyle.Render("drchat> "))
		if err != nil {
			// Ctrl+C or EOF at the prompt.
			fmt.Fprintln(c.status)
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if !c.command(input) {
				return nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.ask(ctx, input)
	}
}

// command runs a slash command and reports whether to keep going.
func (c *plainChat) command(input string) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		return false
	case "/clear":
		c.sess.Clear()
		fmt.Fprintln(c.status, dimStyle.Render("Conversation cleared."))
	case "/details":
		u := c.sess.ToggleDetails()
		c.printer.details = u.ShowDetails
		state := "off"
		if u.ShowDetails {
			state = "on"
		}
		fmt.Fprintln(c.status, dimStyle.Render("Details "+state+"."))
	case "/help", "/?":
		fmt.Fprintln(c.status, plainHelp)
	default:
		fmt.Fprintln(c.status, warningStyle.Render("Unknown command "+input+", try /help"))
	}
	return true
}

// ask submits a question and prints its messages until it settles or the
// user interrupts it.
func (c *plainChat) ask(ctx context.Context, question string) {
	u, ok := c.sess.Ask(ctx, question)
	if !ok {
		return
	}
	c.minVersion = u.Version
	c.printer.Print(u.Messages)

	sigs, stop := c.interrupt()
	defer stop()

	for {
		select {
		case u := <-c.updates:
			if u.Version < c.minVersion {
				continue
			}
			c.printer.Print(u.Messages)
			if u.Done {
				return
			}
		case <-sigs:
			c.cancel()
			return
		case <-ctx.Done():
			c.cancel()
			return
		}
	}
}

func (c *plainChat) cancel() {
	u := c.sess.Cancel()
	c.minVersion = u.Version + 1
	c.printer.Skip(u.Messages)
	fmt.Fprintln(c.status, warningStyle.Render("[Cancelled]"))
}
