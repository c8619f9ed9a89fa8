package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-replication-server/internal/app"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a replication node",
	Long: `Start a replication node in the role given by the configuration file.

The configuration file (--config) specifies:
- Node name, role, primary URL and signing key
- Storage type (file or database) and data directory
- Sync, verification and event log settings
- Resources tracked by the node and the secondaries known to the primary`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	telemetryFlushTimeout  = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	address := viper.GetString("address")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	replicationApp, err := app.NewReplicationApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(address),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
		app.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to build replication server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- replicationApp.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serveErr:
		if stopErr := replicationApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop replication server", "error", stopErr)
		}
		return err
	}

	return replicationApp.Stop(defaultGracefulTimeout)
}
