// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/config"
	"github.com/ledgerkeep/ledgerkeep/internal/logging"
)

// Global flag available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the LedgerKeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerkeep",
		Short: "LedgerKeep - account and session management",
		Long: `LedgerKeep manages user accounts backed by PostgreSQL:
registration, login sessions, roles, and password resets.`,
	}

	// Flag defaults mirror config.Default so an unset flag never shadows
	// a value from the config file or environment.
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("log-format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewPasswdCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewResetCmd())

	return cmd
}

// loadConfig resolves the effective configuration for a command and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.SetDefault("ledgerkeep", version, cfg.LogFormat, cfg.LogLevel)
	return cfg, nil
}
