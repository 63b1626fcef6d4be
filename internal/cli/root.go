package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/config"
)

// rootOptions carries the persistent flags and the resolved config to subcommands.
type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	noCache    bool

	cfg *config.Config
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "peirce",
		Short: "Peirce's criterion outlier-rejection thresholds",
		Long: `peirce computes the outlier-rejection threshold of Peirce's criterion
(Gould's formulation) for N observations, n suspected outliers and m model
unknowns. Observations whose |x - mean| / stddev exceeds R = sqrt(x2) may
be rejected.

Solved thresholds are cached in a local SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", getEnvOrDefault(config.EnvConfig, ""), "path to YAML config file")
	flags.StringVar(&opts.dbPath, "db", config.DefaultDBPath, "threshold cache database path (env "+config.EnvDBPath+")")
	flags.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.BoolVar(&opts.noCache, "no-cache", false, "solve without reading or writing the cache")

	cmd.AddCommand(
		newThresholdCmd(opts),
		newTableCmd(opts),
		newExportCmd(opts),
		newClearCmd(opts),
		newServeCmd(opts),
		newPromptCmd(opts),
		newTokenCmd(opts),
	)

	return cmd
}

// load resolves the config file, environment and explicitly set flags, in
// increasing precedence, and installs the logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	o.applyFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	o.cfg = cfg
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
	slog.Debug("config resolved", "config", o.configPath, "db", cfg.DBPath)
	return nil
}

// applyFlags overrides cfg with flags the user set explicitly.
func (o *rootOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
