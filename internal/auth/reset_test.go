// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/pkg/errutil"
)

func TestNewPasswordReset(t *testing.T) {
	userID := ulid.Make()
	expiry := time.Now().Add(auth.ResetTokenTTL)

	t.Run("creates a valid reset", func(t *testing.T) {
		reset, err := auth.NewPasswordReset(userID, "digest", expiry)
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, reset.ID)
		assert.Equal(t, userID, reset.UserID)
		assert.Equal(t, "digest", reset.TokenDigest)
		assert.Equal(t, expiry, reset.ExpiresAt)
		assert.False(t, reset.CreatedAt.IsZero())
	})

	t.Run("rejects zero user ID", func(t *testing.T) {
		_, err := auth.NewPasswordReset(ulid.ULID{}, "digest", expiry)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_USER")
	})

	t.Run("rejects empty digest", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "", expiry)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_DIGEST")
	})

	t.Run("rejects zero expiry", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "digest", time.Time{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_EXPIRY")
	})
}

func TestPasswordReset_IsExpired(t *testing.T) {
	userID := ulid.Make()

	t.Run("future expiry is not expired", func(t *testing.T) {
		reset, err := auth.NewPasswordReset(userID, "digest", time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, reset.IsExpired())
	})

	t.Run("past expiry is expired", func(t *testing.T) {
		reset, err := auth.NewPasswordReset(userID, "digest", time.Now().Add(-time.Second))
		require.NoError(t, err)
		assert.True(t, reset.IsExpired())
	})
}

func TestGenerateResetToken(t *testing.T) {
	t.Run("produces 64 hex characters", func(t *testing.T) {
		token, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.Len(t, token, auth.ResetTokenBytes*2)
		assert.Regexp(t, "^[0-9a-f]+$", token)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 32 {
			token, err := auth.GenerateResetToken()
			require.NoError(t, err)
			assert.False(t, seen[token])
			seen[token] = true
		}
	})
}
