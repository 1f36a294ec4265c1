// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/store"
)

// SystemStatus holds the health information reported by the status command.
type SystemStatus struct {
	Database      string `json:"database"`
	SchemaVersion uint   `json:"schema_version"`
	SchemaDirty   bool   `json:"schema_dirty"`
	PendingCount  int    `json:"pending_migrations"`
	PendingDetail string `json:"pending_detail,omitempty"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and schema status",
		Long:  `Check database connectivity and report the schema migration state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 10*time.Second, "timeout for database checks")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *Deps) error {
	deps = deps.withDefaults()

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	status := queryStatus(ctx, appCfg.DatabaseURL, deps)

	var output string
	if cfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryStatus checks connectivity and migration state.
func queryStatus(ctx context.Context, databaseURL string, deps *Deps) SystemStatus {
	status := SystemStatus{Database: "unreachable"}

	db, err := deps.DatabaseFactory(ctx, databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	db.Close()
	status.Database = "ok"

	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to create migrator: %v", err)
		return status
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = fmt.Sprintf("failed to read schema version: %v", err)
		return status
	}
	status.SchemaVersion = version
	status.SchemaDirty = dirty

	pending, err := migrator.PendingMigrations()
	if err != nil {
		status.Error = fmt.Sprintf("failed to list pending migrations: %v", err)
		return status
	}
	status.PendingCount = len(pending)
	status.PendingDetail = describeMigrations(pending)

	return status
}

// describeMigrations renders pending versions with their names.
func describeMigrations(versions []uint) string {
	if len(versions) == 0 {
		return ""
	}
	detail := ""
	for i, v := range versions {
		if i > 0 {
			detail += ", "
		}
		name, err := store.MigrationName(v)
		if err != nil {
			name = fmt.Sprintf("%06d", v)
		}
		detail += name
	}
	return detail
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status SystemStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CHECK\tSTATE")
	_, _ = fmt.Fprintln(w, "-----\t-----")
	_, _ = fmt.Fprintf(w, "database\t%s\n", status.Database)

	if status.Database == "ok" && status.Error == "" {
		schema := fmt.Sprintf("version %d", status.SchemaVersion)
		if status.SchemaDirty {
			schema += " (dirty)"
		}
		_, _ = fmt.Fprintf(w, "schema\t%s\n", schema)

		if status.PendingCount == 0 {
			_, _ = fmt.Fprintln(w, "migrations\tup to date")
		} else {
			_, _ = fmt.Fprintf(w, "migrations\t%d pending (%s)\n", status.PendingCount, status.PendingDetail)
		}
	}
	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "error\t%s\n", status.Error)
	}

	_ = w.Flush()
	return string(buf)
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status SystemStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
