// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/drchat/internal/backend"
	"github.com/jeranaias/drchat/internal/config"
	"github.com/jeranaias/drchat/internal/storage"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds the state shared by all commands once the root pre-run has
// loaded the configuration.
type app struct {
	// Flags
	configFile string
	baseURL    string
	debug      bool

	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "drchat",
		Short: "Deep research chat in the terminal",
		Long: `drchat asks questions of a deep-research service and shows the agent's
steps as they stream in.

Run "drchat serve" in front of the research service, then "drchat chat" to
start asking questions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		// Without a subcommand drchat opens the chat.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chat(cmd, chatOptions{})
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $DRCHAT_HOME/config.toml, else ~/.drchat/config.toml)")
	flags.StringVar(&a.baseURL, "url", "", "relay URL (overrides client.base_url)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newAskCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	err := NewRootCommand().Execute()
	var reported *reportedError
	switch {
	case err == nil:
		return 0
	case isCancelled(err):
		return 130
	case errors.As(err, &reported):
		return 1
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return 1
	}
}

// init loads .env, the config file and the logger.
func (a *app) init(logOut io.Writer) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	var err error
	if a.configFile != "" {
		a.cfgPath = a.configFile
		a.cfg, err = config.LoadFromPath(a.configFile)
	} else {
		if a.cfgPath, err = config.ConfigPath(); err != nil {
			return err
		}
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.baseURL != "" {
		a.cfg.Client.BaseURL = a.baseURL
	}
	if a.debug {
		a.cfg.Logging.Level = "debug"
		a.cfg.Server.Debug = true
	}
	config.SetGlobal(a.cfg)

	a.logger = newLogger(a.cfg.Logging, logOut)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger builds the structured logger. Logging.File, when set, wins
// over w.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	if cfg.File != "" {
		if f, err := openLogFile(cfg.File); err == nil {
			w = f
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// =============================================================================
// SHARED COMPONENTS
// =============================================================================

// client returns the research API client for the configured relay.
func (a *app) client() *backend.Client {
	return backend.NewClient(a.cfg.Client.BaseURL).
		WithTimeout(a.cfg.Client.Timeout()).
		WithLogger(a.logger)
}

// openStore opens the history database. It returns nil without error when
// history is disabled and required is false.
func (a *app) openStore(required bool) (*storage.Store, error) {
	if !a.cfg.History.Enabled && !required {
		return nil, nil
	}
	path, err := a.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// commandTimeout bounds history operations.
const commandTimeout = 30 * time.Second
