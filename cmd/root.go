package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alarm-dashboard/internal/app"
	"alarm-dashboard/internal/config"
	"alarm-dashboard/internal/logger"
)

var (
	// configPath to the optional YAML settings file.
	configPath string
	// logLevel overrides the configured level when set.
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "alarmdash",
		Short: "External area alarm dashboard.",
		Long: `Serves the external area alarm dashboard and manages the alarm table.

Open alarms are split into the last 24 hours and older ones, ordered by
priority and detection time. Operators accept or dismiss them with their
operator id; the decision is written once and never overwritten.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarmdash CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (or $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, alarmsCmd, exportCmd, tokenCmd)
}

// loadConfig reads settings and builds the logger. The returned func
// flushes the logger.
func loadConfig() (*config.Config, *zap.SugaredLogger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, flush, err := logger.Build(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, flush, nil
}

// withApp loads the configuration, wires the app and runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Errorw("startup failed", "error", err)
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
