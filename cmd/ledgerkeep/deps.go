// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/auth/postgres"
	"github.com/ledgerkeep/ledgerkeep/internal/config"
	"github.com/ledgerkeep/ledgerkeep/internal/observability"
	"github.com/ledgerkeep/ledgerkeep/internal/store"
)

// Database interface wraps the methods used from pgxpool.Pool.
type Database interface {
	Close()
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// SessionManager interface wraps the auth.SessionManager methods the
// session commands call.
type SessionManager interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
	Login(ctx context.Context, email, secret string) (*auth.User, error)
	Logout()
	CheckAuth(ctx context.Context) bool
	CurrentUser() *auth.User
	ChangePassword(ctx context.Context, currentSecret, newSecret string) error
	UpdateProfile(ctx context.Context, in auth.ProfileUpdate) (*auth.User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newSecret string) error
}

// Deps contains injectable dependencies for commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// DatabaseFactory connects to the database.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ManagerFactory builds a session manager and a cleanup func.
	// Default: buildSessionManager
	ManagerFactory func(ctx context.Context, cfg *config.Config) (SessionManager, func(), error)
}

// withDefaults fills in default implementations for nil fields.
func (d *Deps) withDefaults() *Deps {
	if d == nil {
		d = &Deps{}
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, url string) (Database, error) {
			return store.Connect(ctx, url)
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.ManagerFactory == nil {
		d.ManagerFactory = buildSessionManager
	}
	return d
}

// newHasher builds the credential hasher selected by the configuration.
func newHasher(cfg *config.Config) (auth.CredentialHasher, error) {
	legacy, err := auth.NewSaltedSHA256Hasher(cfg.HashSalt)
	if err != nil {
		return nil, err
	}
	switch cfg.HashScheme {
	case config.SchemeSHA256:
		return legacy, nil
	case config.SchemeArgon2id:
		return auth.NewArgon2idHasher(legacy)
	}
	return nil, oops.Code("CONFIG_INVALID_HASH_SCHEME").
		With("hash_scheme", cfg.HashScheme).
		Errorf("unknown hash scheme %q", cfg.HashScheme)
}

// buildSessionManager wires a SessionManager against the configured
// database. The returned cleanup closes the pool.
func buildSessionManager(ctx context.Context, cfg *config.Config) (SessionManager, func(), error) {
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { pool.Close() }

	mgr, err := buildSessionManagerWithPool(cfg, pool)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return mgr, cleanup, nil
}

// buildSessionManagerWithPool wires a SessionManager onto an existing pool.
func buildSessionManagerWithPool(cfg *config.Config, pool *pgxpool.Pool) (*auth.SessionManager, error) {
	hasher, err := newHasher(cfg)
	if err != nil {
		return nil, err
	}

	// Reset tokens are digested with the salted scheme regardless of the
	// credential hasher. Lookup by digest needs determinism.
	digester, err := auth.NewSaltedSHA256Hasher(cfg.HashSalt)
	if err != nil {
		return nil, err
	}

	users := postgres.NewUserRepository(pool)
	resetRepo := postgres.NewPasswordResetRepository(pool)

	resets, err := auth.NewResetTokenService(users, resetRepo, hasher, digester)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewSessionTokenService([]byte(cfg.SigningKey), cfg.SigningKeyID, auth.SessionTokenTTL)
	if err != nil {
		return nil, err
	}

	state, err := auth.NewFileSessionStore(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	throttle := auth.NewLoginThrottle(auth.NewMemoryAttemptStore())

	return auth.NewSessionManager(users, resets, tokens, throttle, hasher, state)
}
