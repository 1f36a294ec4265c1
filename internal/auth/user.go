// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the access level of an account.
type Role string

// Account roles, from most to least privileged.
const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleUser   Role = "User"
)

// ParseRole validates a role string. The empty string parses to RoleUser,
// the default for new registrations.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleEditor, RoleUser:
		return Role(s), nil
	case "":
		return RoleUser, nil
	}
	return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
}

// IsAdmin returns true for the Admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsEditor returns true for the Editor role.
func (r Role) IsEditor() bool { return r == RoleEditor }

// IsUser returns true for the User role.
func (r Role) IsUser() bool { return r == RoleUser }

// User is an account record in the external store.
type User struct {
	ID             ulid.ULID
	Name           string
	Email          string
	PasswordDigest string
	Role           Role
	IsActive       bool
	IsDeleted      bool
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with a fresh ID. New accounts are active,
// not soft-deleted, and default to RoleUser when role is empty.
func NewUser(name, email, passwordDigest string, role Role) (*User, error) {
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_NAME").Errorf("name cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, oops.Code("AUTH_INVALID_EMAIL").With("email", email).Wrap(err)
	}
	if passwordDigest == "" {
		return nil, oops.Code("AUTH_INVALID_DIGEST").Errorf("password digest cannot be empty")
	}
	parsed, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &User{
		ID:             ulid.Make(),
		Name:           name,
		Email:          email,
		PasswordDigest: passwordDigest,
		Role:           parsed,
		IsActive:       true,
		IsDeleted:      false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// parseUserID parses a token subject back into a ULID.
func parseUserID(subject string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_INVALID_SUBJECT").With("subject", subject).Wrap(err)
	}
	return id, nil
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool {
	return u.IsActive && !u.IsDeleted
}

// UserRepository manages account persistence in the external record store.
type UserRepository interface {
	// Create stores a new account. Returns an AUTH_EMAIL_IN_USE error if
	// the email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates name, email, role, flags, and timestamps.
	Update(ctx context.Context, user *User) error

	// UpdatePassword updates only the credential digest.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordDigest string) error

	// UpdateLastLogin stamps the most recent successful login.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
