package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/config"
	"github.com/peircecrit/peirce/internal/metrics"
	"github.com/peircecrit/peirce/internal/server"
	"github.com/peircecrit/peirce/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the peirce HTTP server.

The server provides:
  - /api/threshold and /api/table JSON endpoints
  - /metrics in the Prometheus text format
  - a token-protected HTML table and cache admin endpoint
  - /health

When --config is set the file is watched and solver and table settings are
reloaded without a restart.

Example:
  peirce serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cfg.Server.TokenFile == "" {
				cfg.Server.TokenFile = tokenFilePath(cfg)
			}

			var s *store.SQLiteStore
			if !opts.noCache {
				var err error
				s, err = store.Open(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer s.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(s, cfg, metrics.New())
			fmt.Fprintf(cmd.OutOrStdout(), "Table: http://localhost:%d/table?token=%s\n", cfg.Server.Port, srv.Token())

			if opts.configPath != "" {
				go watchConfig(ctx, opts.configPath, cfg, srv)
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", defaultPort(), "port to listen on (env "+config.EnvPort+")")
	return cmd
}

// watchConfig pushes reloaded config into srv. Settings fixed at startup
// (database, port, token file) are carried over from current.
func watchConfig(ctx context.Context, path string, current *config.Config, srv *server.Server) {
	err := config.Watch(ctx, path, func(next *config.Config) {
		next.DBPath = current.DBPath
		next.Server.Port = current.Server.Port
		next.Server.TokenFile = current.Server.TokenFile
		srv.UpdateConfig(next)
	})
	if err != nil {
		slog.Error("config watcher stopped", "path", path, "err", err)
	}
}

func defaultPort() int {
	if p := os.Getenv(config.EnvPort); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			return parsed
		}
	}
	return config.DefaultPort
}
