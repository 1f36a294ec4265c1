// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/auth/postgres"
)

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	autoMigrate   bool
	sweepInterval time.Duration
}

// Default values for serve command flags.
const defaultSweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the maintenance process (metrics, token sweeping)",
		Long: `Run the long-lived maintenance process which serves metrics and
health endpoints and periodically removes expired password reset tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.autoMigrate, "auto-migrate", true, "run pending migrations on startup")
	cmd.Flags().DurationVar(&cfg.sweepInterval, "sweep-interval", defaultSweepInterval, "how often to remove expired reset tokens")

	return cmd
}

// runServeWithDeps starts the maintenance process with injectable
// dependencies. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *serveConfig, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.sweepInterval <= 0 {
		return fmt.Errorf("sweep-interval must be positive, got %s", cfg.sweepInterval)
	}

	if cfg.autoMigrate {
		migrator, err := deps.MigratorFactory(appCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
		migrateErr := migrator.Up()
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
		if migrateErr != nil {
			return fmt.Errorf("failed to run migrations: %w", migrateErr)
		}
		slog.Info("migrations up to date")
	}

	db, err := deps.DatabaseFactory(ctx, appCfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start the observability server if configured.
	var obsServer ObservabilityServer
	if appCfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(appCfg.MetricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// The sweeper needs a real pool for the reset repository. In tests
	// with a mocked database it is skipped.
	if pool, ok := db.(*pgxpool.Pool); ok {
		resets := postgres.NewPasswordResetRepository(pool)
		go sweepExpiredResets(ctx, resets, cfg.sweepInterval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Maintenance process started")
	slog.Info("maintenance process ready",
		"metrics_addr", appCfg.MetricsAddr,
		"sweep_interval", cfg.sweepInterval,
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// sweepExpiredResets periodically deletes expired password reset tokens
// until the context is cancelled.
func sweepExpiredResets(ctx context.Context, resets *postgres.PasswordResetRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := resets.DeleteExpired(ctx)
			if err != nil {
				slog.Error("failed to sweep expired reset tokens", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("swept expired reset tokens", "deleted", deleted)
			}
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failed server triggers graceful shutdown.
// It exits when an error is received, the channel is closed, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
