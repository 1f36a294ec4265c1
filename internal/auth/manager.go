// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/ledgerkeep/ledgerkeep/internal/observability"
	"github.com/ledgerkeep/ledgerkeep/pkg/errutil"
)

// ErrEmailInUse is returned when registering with an email that already has
// an account.
var ErrEmailInUse = errors.New("email already in use")

// Session describes the authenticated session held by the running process.
type Session struct {
	Token  string
	Claims *Claims
}

// RegisterInput carries the fields for a new registration. Role may be left
// empty to default to RoleUser.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// ProfileUpdate carries profile fields to change. An empty Password leaves
// the credential untouched.
type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
}

// SessionManager orchestrates registration, login, logout, session
// re-validation, and password maintenance against the external user store.
// It owns the process-wide current-session state; all state access is
// guarded so concurrent callers see a consistent session.
type SessionManager struct {
	users    UserRepository
	resets   *ResetTokenService
	tokens   *SessionTokenService
	throttle *LoginThrottle
	hasher   CredentialHasher
	state    SessionStore
	log      *slog.Logger

	mu      sync.RWMutex
	current *User
	session *Session
	lastErr error
}

// NewSessionManager creates a SessionManager with the default logger.
func NewSessionManager(users UserRepository, resets *ResetTokenService, tokens *SessionTokenService, throttle *LoginThrottle, hasher CredentialHasher, state SessionStore) (*SessionManager, error) {
	return NewSessionManagerWithLogger(users, resets, tokens, throttle, hasher, state, slog.Default())
}

// NewSessionManagerWithLogger creates a SessionManager with an explicit logger.
func NewSessionManagerWithLogger(users UserRepository, resets *ResetTokenService, tokens *SessionTokenService, throttle *LoginThrottle, hasher CredentialHasher, state SessionStore, log *slog.Logger) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset token service is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("session token service is required")
	}
	if throttle == nil {
		return nil, oops.Errorf("login throttle is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	if state == nil {
		return nil, oops.Errorf("session store is required")
	}
	if log == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &SessionManager{
		users:    users,
		resets:   resets,
		tokens:   tokens,
		throttle: throttle,
		hasher:   hasher,
		state:    state,
		log:      log,
	}, nil
}

// Register creates a new account, signs it in, and persists its session
// token. Fails with an AUTH_EMAIL_IN_USE error when the email is taken.
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (*User, error) {
	m.setErr(nil)

	if _, err := m.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, m.fail(oops.Code("AUTH_EMAIL_IN_USE").With("email", in.Email).Wrap(ErrEmailInUse))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, m.fail(oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email uniqueness").
			Wrap(err))
	}

	digest, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, m.fail(oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	user, err := NewUser(in.Name, in.Email, digest, in.Role)
	if err != nil {
		return nil, m.fail(err)
	}

	if err := m.users.Create(ctx, user); err != nil {
		// The store enforces uniqueness too; keep its verdict intact.
		if errors.Is(err, ErrEmailInUse) {
			return nil, m.fail(err)
		}
		return nil, m.fail(oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err))
	}

	if err := m.startSession(user); err != nil {
		return nil, m.fail(err)
	}

	m.log.Info("user registered", "user_id", user.ID.String(), "role", string(user.Role))
	return user, nil
}

// Login authenticates by email and secret. The lockout gate runs before any
// account lookup; a locked identifier fails with AUTH_ACCOUNT_LOCKED and the
// whole minutes remaining. Unknown emails, wrong secrets, and inactive or
// soft-deleted accounts all fail with the same AUTH_INVALID_CREDENTIALS
// error so callers cannot probe which accounts exist.
func (m *SessionManager) Login(ctx context.Context, email, secret string) (*User, error) {
	m.setErr(nil)

	if status := m.throttle.CheckLockout(email); status.Locked {
		observability.RecordLoginAttempt("locked_out")
		return nil, m.fail(oops.Code("AUTH_ACCOUNT_LOCKED").
			With("minutes_remaining", status.MinutesRemaining).
			Errorf("too many failed login attempts, try again in %d minutes", status.MinutesRemaining))
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.recordFailure(email)
			observability.RecordLoginAttempt("invalid_credentials")
			return nil, m.fail(invalidCredentials())
		}
		// Store failures (including cancellation) never touch throttle state.
		observability.RecordLoginAttempt("error")
		return nil, m.fail(oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err))
	}

	if !user.CanLogin() {
		observability.RecordLoginAttempt("invalid_credentials")
		return nil, m.fail(invalidCredentials())
	}

	ok, err := m.hasher.Verify(secret, user.PasswordDigest)
	if err != nil {
		observability.RecordLoginAttempt("error")
		return nil, m.fail(oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify secret").
			Wrap(err))
	}
	if !ok {
		m.recordFailure(email)
		observability.RecordLoginAttempt("invalid_credentials")
		return nil, m.fail(invalidCredentials())
	}

	m.throttle.Clear(email)

	// Lazy digest upgrade after a verified secret. Login succeeds either way.
	if m.hasher.NeedsUpgrade(user.PasswordDigest) {
		if digest, hashErr := m.hasher.Hash(secret); hashErr == nil {
			if upErr := m.users.UpdatePassword(ctx, user.ID, digest); upErr == nil {
				user.PasswordDigest = digest
			} else {
				errutil.LogError(m.log, "credential digest upgrade failed", upErr)
			}
		}
	}

	now := time.Now()
	if err := m.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		observability.RecordLoginAttempt("error")
		return nil, m.fail(oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "update last login").
			Wrap(err))
	}
	user.LastLogin = &now

	if err := m.startSession(user); err != nil {
		return nil, m.fail(err)
	}

	observability.RecordLoginAttempt("success")
	m.log.Info("user logged in", "user_id", user.ID.String())
	return user, nil
}

// Logout clears the current session and the persisted token. It has no
// failure mode: clear errors on the persisted state are logged, not
// surfaced.
func (m *SessionManager) Logout() {
	m.mu.Lock()
	m.current = nil
	m.session = nil
	m.mu.Unlock()

	if err := m.state.Clear(); err != nil {
		errutil.LogError(m.log, "failed to clear persisted session", err)
	}
}

// CheckAuth re-validates the persisted session token. A missing token
// reports not-authenticated; a token that fails verification, or whose
// subject no longer resolves to an active, non-deleted account, clears all
// session state before reporting not-authenticated. On success the current
// session is rehydrated from the store.
func (m *SessionManager) CheckAuth(ctx context.Context) bool {
	m.setErr(nil)

	token, _, err := m.state.Load()
	if err != nil {
		m.setErr(err)
		errutil.LogError(m.log, "failed to load persisted session", err)
		return false
	}
	if token == "" {
		return false
	}

	claims, err := m.tokens.Decode(token)
	if err != nil {
		m.Logout()
		return false
	}

	id, err := parseUserID(claims.Subject)
	if err != nil {
		m.Logout()
		return false
	}

	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.setErr(err)
			errutil.LogError(m.log, "failed to re-fetch user during auth check", err)
		}
		m.Logout()
		return false
	}

	if !user.CanLogin() {
		m.Logout()
		return false
	}

	m.mu.Lock()
	m.current = user
	m.session = &Session{Token: token, Claims: claims}
	m.mu.Unlock()
	return true
}

// ChangePassword replaces the current user's secret after re-verifying the
// present one. Requires an authenticated session.
func (m *SessionManager) ChangePassword(ctx context.Context, currentSecret, newSecret string) error {
	m.setErr(nil)

	user := m.CurrentUser()
	if user == nil {
		return m.fail(notAuthenticated())
	}

	ok, err := m.hasher.Verify(currentSecret, user.PasswordDigest)
	if err != nil {
		return m.fail(oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "verify current secret").
			Wrap(err))
	}
	if !ok {
		return m.fail(oops.Code("AUTH_WRONG_PASSWORD").Errorf("current password is incorrect"))
	}

	digest, err := m.hasher.Hash(newSecret)
	if err != nil {
		return m.fail(oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "hash new secret").
			Wrap(err))
	}

	if err := m.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return m.fail(oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "update password").
			Wrap(err))
	}

	m.mu.Lock()
	if m.current != nil {
		m.current.PasswordDigest = digest
		m.current.UpdatedAt = time.Now()
	}
	m.mu.Unlock()
	return nil
}

// UpdateProfile changes the current user's name, email, and optionally the
// secret. Requires an authenticated session.
func (m *SessionManager) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	m.setErr(nil)

	current := m.CurrentUser()
	if current == nil {
		return nil, m.fail(notAuthenticated())
	}

	updated := *current
	if in.Name != "" {
		updated.Name = in.Name
	}
	if in.Email != "" {
		updated.Email = in.Email
	}
	if in.Password != "" {
		digest, err := m.hasher.Hash(in.Password)
		if err != nil {
			return nil, m.fail(oops.Code("AUTH_PROFILE_UPDATE_FAILED").
				With("operation", "hash password").
				Wrap(err))
		}
		updated.PasswordDigest = digest
	}
	updated.UpdatedAt = time.Now()

	if err := m.users.Update(ctx, &updated); err != nil {
		return nil, m.fail(oops.Code("AUTH_PROFILE_UPDATE_FAILED").
			With("operation", "update user").
			Wrap(err))
	}

	m.mu.Lock()
	m.current = &updated
	m.mu.Unlock()
	return &updated, nil
}

// RequestPasswordReset starts the reset flow for an email. Returns the
// plaintext token for out-of-band delivery; unknown emails still report
// success with an empty token.
func (m *SessionManager) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	m.setErr(nil)
	token, err := m.resets.RequestReset(ctx, email)
	if err != nil {
		return "", m.fail(err)
	}
	return token, nil
}

// ResetPassword redeems a reset token with a replacement secret.
func (m *SessionManager) ResetPassword(ctx context.Context, token, newSecret string) error {
	m.setErr(nil)
	if err := m.resets.Redeem(ctx, token, newSecret); err != nil {
		return m.fail(err)
	}
	return nil
}

// IsAuthenticated reports whether a current session exists.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *SessionManager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// CurrentSession returns a copy of the session descriptor, or nil.
func (m *SessionManager) CurrentSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Role returns the current user's role, or the empty role when signed out.
func (m *SessionManager) Role() Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Role
}

// IsAdmin reports whether the current user holds the Admin role.
func (m *SessionManager) IsAdmin() bool { return m.Role().IsAdmin() }

// IsEditor reports whether the current user holds the Editor role.
func (m *SessionManager) IsEditor() bool { return m.Role().IsEditor() }

// IsUser reports whether the current user holds the User role.
func (m *SessionManager) IsUser() bool { return m.Role().IsUser() }

// RequireRole gates an operation on a role. Admins pass every gate.
func (m *SessionManager) RequireRole(role Role) error {
	current := m.Role()
	if current == "" {
		return notAuthenticated()
	}
	if current != role && current != RoleAdmin {
		return oops.Code("AUTH_PERMISSION_DENIED").
			With("required_role", string(role)).
			Errorf("operation requires the %s role", role)
	}
	return nil
}

// LastError returns the most recent operation failure, or nil. It is reset
// at the start of each operation.
func (m *SessionManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// startSession issues a token for the user, persists it, and installs the
// in-memory session.
func (m *SessionManager) startSession(user *User) error {
	token, err := m.tokens.Issue(user)
	if err != nil {
		return oops.Code("AUTH_SESSION_START_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	claims, err := m.tokens.Decode(token)
	if err != nil {
		return oops.Code("AUTH_SESSION_START_FAILED").
			With("operation", "decode issued token").
			Wrap(err)
	}

	if err := m.state.Save(token, user.ID.String()); err != nil {
		return oops.Code("AUTH_SESSION_START_FAILED").
			With("operation", "persist token").
			Wrap(err)
	}

	m.mu.Lock()
	m.current = user
	m.session = &Session{Token: token, Claims: claims}
	m.mu.Unlock()
	return nil
}

// recordFailure registers a throttle failure and counts a fresh lockout.
func (m *SessionManager) recordFailure(email string) {
	before := m.throttle.CheckLockout(email)
	m.throttle.RecordFailure(email)
	if !before.Locked && m.throttle.CheckLockout(email).Locked {
		observability.RecordLockout()
		m.log.Warn("login lockout armed", "identifier", email)
	}
}

func (m *SessionManager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *SessionManager) fail(err error) error {
	m.setErr(err)
	return err
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}

func notAuthenticated() error {
	return oops.Code("AUTH_NOT_AUTHENTICATED").Errorf("no authenticated session")
}
