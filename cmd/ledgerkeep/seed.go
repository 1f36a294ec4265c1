// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/auth/postgres"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	name     string
	email    string
	password string
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the initial admin account",
		Long: `Creates the initial admin account.
This command is idempotent - it will not create duplicates if run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.name, "name", "Administrator", "admin account name")
	cmd.Flags().StringVar(&cfg.email, "email", "", "admin account email (required)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin account password (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig, deps *Deps) error {
	deps = deps.withDefaults()

	if cfg.email == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--email is required")
	}
	if cfg.password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--password is required")
	}

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hasher, err := newHasher(appCfg)
	if err != nil {
		return err
	}

	digest, err := hasher.Hash(cfg.password)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "hash admin password").Wrap(err)
	}

	admin, err := auth.NewUser(cfg.name, cfg.email, digest, auth.RoleAdmin)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "build admin account").Wrap(err)
	}

	// Add timeout to prevent indefinite hangs
	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Running migrations...")
	migrator, err := deps.MigratorFactory(appCfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	migrateErr := migrator.Up()
	if closeErr := migrator.Close(); closeErr != nil {
		slog.Warn("error closing migrator", "error", closeErr)
	}
	if migrateErr != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(migrateErr)
	}

	cmd.Println("Connecting to database...")
	db, err := deps.DatabaseFactory(ctx, appCfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	pool, ok := db.(*pgxpool.Pool)
	if !ok {
		return oops.Code("DB_POOL_FAILED").Errorf("database handle is not a pgx pool")
	}

	users := postgres.NewUserRepository(pool)
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, auth.ErrEmailInUse) {
			cmd.Println("Admin account already exists, skipping seed")

			// Verify the existing account still has admin rights
			existing, getErr := users.GetByEmail(ctx, cfg.email)
			if getErr != nil {
				slog.Warn("Could not verify existing admin account",
					"email", cfg.email,
					"error", getErr)
			} else if existing.Role != auth.RoleAdmin {
				slog.Warn("Seed account role mismatch",
					"email", cfg.email,
					"expected", auth.RoleAdmin,
					"actual", existing.Role)
			}

			slog.Info("Admin account already seeded", "email", cfg.email)
			return nil
		}
		return oops.Code("SEED_FAILED").With("operation", "create admin account").Wrap(err)
	}

	cmd.Println("Created admin account: " + cfg.email)
	slog.Info("Created admin account", "id", admin.ID, "email", admin.Email)

	cmd.Println("Seeding complete!")
	return nil
}
