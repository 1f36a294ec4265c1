// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/auth/postgres"
	"github.com/ledgerkeep/ledgerkeep/pkg/errutil"
)

func mockAccount(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("Grace Hopper", "grace@example.com", "digest", auth.RoleUser)
	require.NoError(t, err)
	return user
}

// anyArgs returns n pgxmock.AnyArg matchers, for expectations that do not
// care about the exact argument values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestUserRepository_Create_Mock(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
		wantIs    error
	}{
		{
			name: "unique violation maps to email in use",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(anyArgs(10)...).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantCode: "AUTH_EMAIL_IN_USE",
			wantIs:   auth.ErrEmailInUse,
		},
		{
			name: "other database errors pass through",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(anyArgs(10)...).
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_CREATE_FAILED",
		},
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(anyArgs(10)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := postgres.NewUserRepository(mock)
			err = repo.Create(context.Background(), mockAccount(t))

			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_Update_Mock(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
		wantIs    error
	}{
		{
			name: "unique violation maps to email in use",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(anyArgs(9)...).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantCode: "AUTH_EMAIL_IN_USE",
			wantIs:   auth.ErrEmailInUse,
		},
		{
			name: "no rows affected maps to not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(anyArgs(9)...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantCode: "USER_NOT_FOUND",
			wantIs:   auth.ErrNotFound,
		},
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(anyArgs(9)...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := postgres.NewUserRepository(mock)
			err = repo.Update(context.Background(), mockAccount(t))

			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}
