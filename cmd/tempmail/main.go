// Package main is the entry point for the temp-mail SMTP inbox.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// cli carries flags shared by every subcommand.
type cli struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "tempmail",
		Short: "SMTP inbox for temporary addresses on a custom domain",
		Long: `SMTP inbox for temporary addresses on a custom domain

Accepts mail for whitelisted recipients, stores every message in a local
record file with its attachments and HTML body, and forwards a summary to
the configured notification channel.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "path to YAML configuration file (optional)")

	rootCmd.AddCommand(
		c.serveCmd(),
		c.listCmd(),
		c.accessCmd("whitelist", "recipient addresses that may receive mail"),
		c.accessCmd("blacklist", "sender addresses that are always refused"),
	)
	return rootCmd
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func (c *cli) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFromFile(c.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Logging.Level)
	return cfg, nil
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
