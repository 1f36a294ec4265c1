// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/ledgerkeep/ledgerkeep/internal/observability"
)

// ResetTokenService issues and redeems single-use, time-limited password
// reset tokens. Tokens are stored as deterministic digests so redemption can
// look them up by the presented plaintext; delivery of the plaintext (email)
// is an external collaborator's responsibility.
type ResetTokenService struct {
	users    UserRepository
	resets   PasswordResetRepository
	hasher   CredentialHasher
	digester TokenDigester
}

// NewResetTokenService creates a ResetTokenService. The digester must be
// deterministic; the hasher produces the replacement credential digest on
// redemption.
func NewResetTokenService(users UserRepository, resets PasswordResetRepository, hasher CredentialHasher, digester TokenDigester) (*ResetTokenService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	if digester == nil {
		return nil, oops.Errorf("token digester is required")
	}
	return &ResetTokenService{users: users, resets: resets, hasher: hasher, digester: digester}, nil
}

// RequestReset starts a password reset for the account with the given email
// and returns the plaintext token for out-of-band delivery. If no account
// has that email, it returns an empty token and no error, so callers cannot
// probe which addresses exist; no record is created in that case.
func (s *ResetTokenService) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordResetRequest("unknown_email")
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, s.digester.Digest(token), time.Now().Add(ResetTokenTTL))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset record").
			Wrap(err)
	}

	if err := s.resets.Upsert(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "upsert reset record").
			Wrap(err)
	}

	observability.RecordResetRequest("issued")
	return token, nil
}

// Redeem sets a new secret for the account owning the presented token. The
// token must match a stored digest and still be inside its validity window.
// The credential update and the record deletion happen in one repository
// step; the record is gone after a successful redemption, so a second
// presentation of the same token fails.
func (s *ResetTokenService) Redeem(ctx context.Context, token, newSecret string) error {
	if token == "" || newSecret == "" {
		return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
	}

	reset, err := s.resets.GetByTokenDigest(ctx, s.digester.Digest(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordResetRedemption("invalid")
			return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
		}
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "get reset by token digest").
			Wrap(err)
	}

	if reset.IsExpired() {
		observability.RecordResetRedemption("expired")
		return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
	}

	digest, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "hash new secret").
			Wrap(err)
	}

	if err := s.resets.Redeem(ctx, reset, digest); err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "redeem reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}

	observability.RecordResetRedemption("success")
	return nil
}
