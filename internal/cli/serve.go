// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/drchat/internal/config"
	"github.com/jeranaias/drchat/internal/relay"
)

// shutdownTimeout bounds the wait for open streams on exit.
const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host     string
	port     int
	upstream string
	noWatch  bool
}

// apply overrides cfg with the flags the user set.
func (o serveOptions) apply(cmd *cobra.Command, cfg config.ServerConfig) config.ServerConfig {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("upstream") {
		cfg.UpstreamURL = o.upstream
	}
	return cfg
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay in front of the research service",
		Long: `Run the HTTP relay clients talk to.

POST /api/query forwards a question to the research service and returns its
request ID. GET /api/query?request_id=ID relays the event stream as
server-sent events. The upstream URL comes from NODE_SERVER_URL or
server.upstream_url and is reloaded when the config file changes.`,
		Example: `  drchat serve
  drchat serve --port 8080 --upstream http://research:3000/api/v1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "", "listen host (default from config)")
	flags.IntVarP(&opts.port, "port", "p", 0, "listen port (default from config, or PORT)")
	flags.StringVar(&opts.upstream, "upstream", "", "research service URL (default from config, or NODE_SERVER_URL)")
	flags.BoolVar(&opts.noWatch, "no-watch", false, "do not reload the config file on change")
	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	srv := relay.New(opts.apply(cmd, a.cfg.Server), a.logger).WithVersion(Version)

	if !opts.noWatch {
		a.watchConfig(ctx, func(cfg *config.Config) {
			srv.UpdateConfig(opts.apply(cmd, cfg.Server))
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// watchConfig reloads the config file on change until ctx ends. A missing
// file is not watched.
func (a *app) watchConfig(ctx context.Context, onChange func(*config.Config)) {
	if _, err := os.Stat(a.cfgPath); err != nil {
		return
	}
	w, err := config.NewWatcher(a.cfgPath, onChange, a.logger)
	if err != nil {
		a.logger.Warn("config watch disabled", "path", a.cfgPath, "error", err)
		return
	}
	go w.Run(ctx)
}
