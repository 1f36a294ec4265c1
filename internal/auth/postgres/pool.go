// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// poolIface covers the pool operations the repositories use.
// *pgxpool.Pool satisfies it, as does pgxmock.PgxPoolIface in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}
