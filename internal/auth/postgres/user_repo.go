// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new account. A unique violation on the email index maps
// to auth.ErrEmailInUse so callers need not know database error codes.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, name, email, password_digest, role,
			is_active, is_deleted, last_login, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordDigest,
		string(user.Role),
		user.IsActive,
		user.IsDeleted,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("AUTH_EMAIL_IN_USE").
				With("email", user.Email).
				Wrap(auth.ErrEmailInUse)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert account").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, password_digest, role,
		       is_active, is_deleted, last_login, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, password_digest, role,
		       is_active, is_deleted, last_login, created_at, updated_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// Update updates an existing account.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			name = $2,
			email = $3,
			password_digest = $4,
			role = $5,
			is_active = $6,
			is_deleted = $7,
			last_login = $8,
			updated_at = $9
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordDigest,
		string(user.Role),
		user.IsActive,
		user.IsDeleted,
		user.LastLogin,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("AUTH_EMAIL_IN_USE").
				With("email", user.Email).
				Wrap(auth.ErrEmailInUse)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update account").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the credential digest for an account.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordDigest string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_digest = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordDigest, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the most recent successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET last_login = $2 WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("USER_UPDATE_LAST_LOGIN_FAILED").
			With("operation", "update last login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *UserRepository) scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		name      string
		email     string
		digest    string
		roleStr   string
		isActive  bool
		isDeleted bool
		lastLogin *time.Time
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&idStr,
		&name,
		&email,
		&digest,
		&roleStr,
		&isActive,
		&isDeleted,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}

	return &auth.User{
		ID:             id,
		Name:           name,
		Email:          email,
		PasswordDigest: digest,
		Role:           role,
		IsActive:       isActive,
		IsDeleted:      isDeleted,
		LastLogin:      lastLogin,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
