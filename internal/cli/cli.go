// Package cli wires the shared command-line surface of the verification
// tools: flags, configuration loading, diagnostics logging and exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/smtp-verify-lite/internal/config"
)

// ErrChecksFailed is returned by a --strict run whose checks did not pass.
var ErrChecksFailed = errors.New("verification checks failed")

// RunFunc executes a tool against the loaded configuration and reports
// whether every check passed.
type RunFunc func(ctx context.Context, cfg *config.Config) (bool, error)

type flags struct {
	configFile string
	envFile    string
	logLevel   string
	strict     bool
}

// NewRootCommand returns the root command of tool. Diagnostics go to the
// command's error stream.
func NewRootCommand(tool config.Tool, short string, run RunFunc) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           string(tool),
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(tool, config.Options{
				ConfigFile: f.configFile,
				EnvFile:    f.envFile,
			})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = strings.ToLower(f.logLevel)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if f.strict {
				cfg.Strict = true
			}

			slog.SetDefault(NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()))
			slog.Debug("configuration loaded",
				"tool", tool,
				"provider", cfg.Provider,
				"smtp_addr", fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
				"api_base_url", cfg.API.BaseURL,
			)

			passed, err := run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if !passed && cfg.Strict {
				return ErrChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.configFile, "config", "", "path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "path to dotenv file, ignored when missing")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "diagnostics level: debug, info, warn, error")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero when a check fails")

	return cmd
}

// NewLogger builds the diagnostics logger. format "json" selects the JSON
// handler; anything else falls back to text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute runs cmd until it returns or the process receives SIGINT or
// SIGTERM, and returns the process exit code.
func Execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return exitCode(cmd.ExecuteContext(ctx), cmd.ErrOrStderr())
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if !errors.Is(err, ErrChecksFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}
