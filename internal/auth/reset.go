// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 32 bytes = 64 hex chars
	ResetTokenTTL   = time.Hour // 1 hour expiry
)

// PasswordReset is a pending password reset request. Only the digest of the
// token is stored; the plaintext goes to the user out of band. At most one
// record exists per user (upsert semantics) and each record is single-use.
type PasswordReset struct {
	ID          ulid.ULID
	UserID      ulid.ULID
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(userID ulid.ULID, tokenDigest string, expiresAt time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenDigest == "" {
		return nil, oops.Code("RESET_INVALID_DIGEST").Errorf("token digest cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &PasswordReset{
		ID:          ulid.Make(),
		UserID:      userID,
		TokenDigest: tokenDigest,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *PasswordReset) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// GenerateResetToken creates a cryptographically random reset token,
// rendered as hex. The caller digests it before storage.
func GenerateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Upsert stores a reset request, replacing any prior pending request
	// for the same user.
	Upsert(ctx context.Context, reset *PasswordReset) error

	// GetByTokenDigest retrieves a reset request by its token digest.
	GetByTokenDigest(ctx context.Context, tokenDigest string) (*PasswordReset, error)

	// Redeem updates the owning user's credential digest and deletes the
	// reset request as one atomic step, so a crash cannot leave a
	// redeemable stale token behind a changed credential.
	Redeem(ctx context.Context, reset *PasswordReset, newPasswordDigest string) error

	// DeleteByUser removes all reset requests for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes expired reset requests and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
