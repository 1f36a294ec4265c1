// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/config"
	"github.com/ledgerkeep/ledgerkeep/pkg/errutil"
)

// setRequiredEnv provides the minimum environment for Load to validate.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGERKEEP_DATABASE_URL", "postgres://localhost/ledgerkeep")
	t.Setenv("LEDGERKEEP_SIGNING_KEY", "test-signing-key")
	t.Setenv("LEDGERKEEP_HASH_SALT", "test-salt")
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, config.SchemeArgon2id, cfg.HashScheme)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.SessionFile)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_EnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/ledgerkeep", cfg.DatabaseURL)
	assert.Equal(t, "test-signing-key", cfg.SigningKey)
	assert.Equal(t, config.SchemeArgon2id, cfg.HashScheme)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_File(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://filehost/ledgerkeep
signing_key: file-signing-key
signing_key_id: "2026-01"
hash_salt: file-salt
log_format: text
log_level: debug
`), 0o600))

		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres://filehost/ledgerkeep", cfg.DatabaseURL)
		assert.Equal(t, "file-signing-key", cfg.SigningKey)
		assert.Equal(t, "2026-01", cfg.SigningKeyID)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database_url: [unclosed"), 0o600))

		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
	})
}

func TestLoad_Precedence(t *testing.T) {
	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://filehost/ledgerkeep
signing_key: file-signing-key
hash_salt: file-salt
`), 0o600))

		t.Setenv("LEDGERKEEP_DATABASE_URL", "postgres://envhost/ledgerkeep")

		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres://envhost/ledgerkeep", cfg.DatabaseURL)
		assert.Equal(t, "file-signing-key", cfg.SigningKey)
	})

	t.Run("flags override environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LEDGERKEEP_LOG_FORMAT", "json")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-format", "json", "")
		require.NoError(t, flags.Parse([]string{"--log-format=text"}))

		cfg, err := config.Load("", flags)
		require.NoError(t, err)

		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("unset flags do not shadow environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LEDGERKEEP_LOG_LEVEL", "warn")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-level", "", "")
		require.NoError(t, flags.Parse(nil))

		cfg, err := config.Load("", flags)
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.LogLevel)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.DatabaseURL = "postgres://localhost/ledgerkeep"
		cfg.SigningKey = "key"
		cfg.HashSalt = "salt"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing database URL", func(t *testing.T) {
		cfg := valid()
		cfg.DatabaseURL = ""
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_MISSING_DATABASE_URL")
	})

	t.Run("missing signing key", func(t *testing.T) {
		cfg := valid()
		cfg.SigningKey = ""
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_MISSING_SIGNING_KEY")
	})

	t.Run("missing hash salt", func(t *testing.T) {
		cfg := valid()
		cfg.HashSalt = ""
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_MISSING_HASH_SALT")
	})

	t.Run("sha256 scheme accepted", func(t *testing.T) {
		cfg := valid()
		cfg.HashScheme = config.SchemeSHA256
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown hash scheme", func(t *testing.T) {
		cfg := valid()
		cfg.HashScheme = "bcrypt"
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_INVALID_HASH_SCHEME")
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := valid()
		cfg.LogFormat = "xml"
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_INVALID_LOG_FORMAT")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := valid()
		cfg.LogLevel = "verbose"
		errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_INVALID_LOG_LEVEL")
	})
}
