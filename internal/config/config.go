// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

// Package config loads LedgerKeep configuration from a YAML file,
// LEDGERKEEP_* environment variables, and command-line flags, in
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/ledgerkeep/ledgerkeep/internal/xdg"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "LEDGERKEEP_"

// Credential hashing schemes accepted in configuration.
const (
	SchemeArgon2id = "argon2id"
	SchemeSHA256   = "sha256"
)

// Config holds the full runtime configuration. Secrets (signing key, hash
// salt) are injected here rather than compiled in, so rotating them never
// requires a rebuild.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// SigningKey is the HMAC key for session tokens.
	SigningKey string `koanf:"signing_key"`

	// SigningKeyID, when set, is emitted as the kid header of issued
	// tokens to support key rotation.
	SigningKeyID string `koanf:"signing_key_id"`

	// HashScheme selects the credential hasher: argon2id or sha256.
	HashScheme string `koanf:"hash_scheme"`

	// HashSalt is the site-wide salt for the sha256 scheme. The argon2id
	// scheme generates per-credential salts but still needs it to verify
	// legacy digests and to digest reset tokens.
	HashSalt string `koanf:"hash_salt"`

	// SessionFile is where the persisted session token lives.
	SessionFile string `koanf:"session_file"`

	// MetricsAddr is the metrics/health HTTP address. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// LogFormat is json or text.
	LogFormat string `koanf:"log_format"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `koanf:"log_level"`
}

// Default returns the configuration used before any file, environment, or
// flag overrides.
func Default() Config {
	return Config{
		HashScheme:  SchemeArgon2id,
		SessionFile: xdg.SessionFile(),
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// Load builds a Config from defaults, then an optional YAML file at path,
// then LEDGERKEEP_* environment variables, then flags. Later sources win.
// A nil flags set skips the flag layer.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		// Flag names use dashes; config keys use underscores.
		flagProvider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_MISSING_DATABASE_URL").
			Errorf("database_url is required")
	}
	if c.SigningKey == "" {
		return oops.Code("CONFIG_MISSING_SIGNING_KEY").
			Errorf("signing_key is required")
	}
	if c.HashSalt == "" {
		return oops.Code("CONFIG_MISSING_HASH_SALT").
			Errorf("hash_salt is required")
	}
	switch c.HashScheme {
	case SchemeArgon2id, SchemeSHA256:
	default:
		return oops.Code("CONFIG_INVALID_HASH_SCHEME").
			With("hash_scheme", c.HashScheme).
			Errorf("hash_scheme must be %q or %q", SchemeArgon2id, SchemeSHA256)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID_LOG_FORMAT").
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text'")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID_LOG_LEVEL").
			With("log_level", c.LogLevel).
			Errorf("log_level must be debug, info, warn, or error")
	}
	return nil
}
