package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tierflow/internal/config"
)

var (
	configPath string
	logLevel   string
	jsonLogs   bool
)

// Execute runs the tierflow CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "tierflow",
		Short: "Market-cap tier rotation signals",
		Long: "tierflow classifies crypto assets into market-cap tiers, detects capital\n" +
			"rotation between tiers, validates signals against smart-money patterns,\n" +
			"and backtests the resulting strategy.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs instead of console format")

	root.AddCommand(scanCmd())
	root.AddCommand(backtestCmd())
	root.AddCommand(optimizeCmd())
	root.AddCommand(monitorCmd())

	return root.ExecuteContext(ctx)
}

func setupLogging() error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	if jsonLogs {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}
