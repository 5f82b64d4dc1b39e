package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"libraflow/internal/app"
	"libraflow/internal/platform/config"
	"libraflow/internal/platform/logger"
	"libraflow/internal/platform/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "circulation",
	Short: "Library circulation engine",
	Long: `circulation runs the libraflow item lifecycle engine: borrowing,
reservations, returns and the periodic scans that keep them current.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./libraflow.yaml or /etc/libraflow/libraflow.yaml)")
}

// bootstrap loads config, installs the logger and tracer, and builds the app.
// The returned cleanup flushes traces and closes connections.
func bootstrap(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Error("close", "error", err)
		}
		if err := shutdown(context.Background()); err != nil {
			log.Error("telemetry shutdown", "error", err)
		}
	}
	return a, cleanup, nil
}
