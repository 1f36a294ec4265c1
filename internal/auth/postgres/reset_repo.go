// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using
// PostgreSQL.
type PasswordResetRepository struct {
	pool poolIface
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool poolIface) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Upsert stores a reset request, replacing any prior pending request for the
// same account. The table enforces at most one row per account.
func (r *PasswordResetRepository) Upsert(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_resets (id, account_id, token_digest, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET
			id = EXCLUDED.id,
			token_digest = EXCLUDED.token_digest,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, reset.ID.String(), reset.UserID.String(), reset.TokenDigest, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_UPSERT_FAILED").
			With("operation", "upsert password_reset").
			With("account_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenDigest retrieves a reset request by its token digest.
func (r *PasswordResetRepository) GetByTokenDigest(ctx context.Context, tokenDigest string) (*auth.PasswordReset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, token_digest, expires_at, created_at
		FROM password_resets
		WHERE token_digest = $1
	`, tokenDigest)

	reset, err := r.scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// Redeem updates the owning account's credential digest and deletes the
// reset request in one transaction. A partially applied redemption cannot
// be observed: either the new credential is set and the token is gone, or
// neither happened.
func (r *PasswordResetRepository) Redeem(ctx context.Context, reset *auth.PasswordReset, newPasswordDigest string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `
		UPDATE accounts SET password_digest = $2, updated_at = $3
		WHERE id = $1
	`, reset.UserID.String(), newPasswordDigest, time.Now())
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "update account password").
			With("account_id", reset.UserID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("account_id", reset.UserID.String()).
			Wrap(auth.ErrNotFound)
	}

	result, err = tx.Exec(ctx, `
		DELETE FROM password_resets WHERE id = $1
	`, reset.ID.String())
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "delete password_reset").
			With("id", reset.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Another redemption raced us and consumed the token first.
		return oops.Code("RESET_NOT_FOUND").
			With("id", reset.ID.String()).
			Wrap(auth.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// DeleteByUser removes all reset requests for an account.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE account_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_resets by account").
			With("account_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes expired reset requests and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < now()
	`)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a PasswordReset.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PasswordResetRepository) scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		idStr     string
		userIDStr string
		digest    string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &digest, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ACCOUNT_ID").
			With("account_id", userIDStr).
			Wrap(err)
	}

	return &auth.PasswordReset{
		ID:          id,
		UserID:      userID,
		TokenDigest: digest,
		ExpiresAt:   expiresAt,
		CreatedAt:   createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
