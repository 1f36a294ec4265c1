// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/config"
)

// setTestEnv provides the minimum environment for loadConfig to succeed.
func setTestEnv(t *testing.T) {
	t.Helper()
	configFile = ""
	t.Setenv("LEDGERKEEP_DATABASE_URL", "postgres://localhost:5432/ledgerkeep_test")
	t.Setenv("LEDGERKEEP_SIGNING_KEY", "test-signing-key")
	t.Setenv("LEDGERKEEP_HASH_SALT", "test-salt")
}

// newTestCmd builds a bare command with captured output and a context.
func newTestCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

// fakeMigrator implements the Migrator interface for testing.
type fakeMigrator struct {
	upCalled    bool
	upErr       error
	version     uint
	dirty       bool
	versionErr  error
	pending     []uint
	pendingErr  error
	closeCalled bool
	closeErr    error
}

func (m *fakeMigrator) Up() error {
	m.upCalled = true
	return m.upErr
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, m.versionErr
}

func (m *fakeMigrator) PendingMigrations() ([]uint, error) {
	return m.pending, m.pendingErr
}

func (m *fakeMigrator) Close() error {
	m.closeCalled = true
	return m.closeErr
}

// fakeDatabase implements the Database interface for testing.
type fakeDatabase struct {
	closeCalled bool
}

func (d *fakeDatabase) Close() { d.closeCalled = true }

// fakeObsServer implements the ObservabilityServer interface for testing.
type fakeObsServer struct {
	startCalled bool
	startErr    error
	stopCalled  bool
	errCh       chan error
}

func (s *fakeObsServer) Start() (<-chan error, error) {
	s.startCalled = true
	if s.startErr != nil {
		return nil, s.startErr
	}
	if s.errCh == nil {
		s.errCh = make(chan error)
	}
	return s.errCh, nil
}

func (s *fakeObsServer) Stop(_ context.Context) error {
	s.stopCalled = true
	return nil
}

func (s *fakeObsServer) Addr() string { return "127.0.0.1:9100" }

// fakeManager implements the SessionManager interface for testing.
type fakeManager struct {
	authed bool
	user   *auth.User

	registerIn  auth.RegisterInput
	registerErr error

	loginEmail  string
	loginSecret string
	loginErr    error

	logoutCalled bool

	changeCurrent string
	changeNext    string
	changeErr     error

	updateIn  auth.ProfileUpdate
	updateErr error

	resetEmail   string
	resetToken   string
	resetReqErr  error
	redeemToken  string
	redeemSecret string
	redeemErr    error
}

func (m *fakeManager) Register(_ context.Context, in auth.RegisterInput) (*auth.User, error) {
	m.registerIn = in
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return m.user, nil
}

func (m *fakeManager) Login(_ context.Context, email, secret string) (*auth.User, error) {
	m.loginEmail = email
	m.loginSecret = secret
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.user, nil
}

func (m *fakeManager) Logout() { m.logoutCalled = true }

func (m *fakeManager) CheckAuth(_ context.Context) bool { return m.authed }

func (m *fakeManager) CurrentUser() *auth.User { return m.user }

func (m *fakeManager) ChangePassword(_ context.Context, current, next string) error {
	m.changeCurrent = current
	m.changeNext = next
	return m.changeErr
}

func (m *fakeManager) UpdateProfile(_ context.Context, in auth.ProfileUpdate) (*auth.User, error) {
	m.updateIn = in
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.user, nil
}

func (m *fakeManager) RequestPasswordReset(_ context.Context, email string) (string, error) {
	m.resetEmail = email
	return m.resetToken, m.resetReqErr
}

func (m *fakeManager) ResetPassword(_ context.Context, token, secret string) error {
	m.redeemToken = token
	m.redeemSecret = secret
	return m.redeemErr
}

// managerDeps wraps a fakeManager in a Deps and reports cleanup calls.
func managerDeps(mgr SessionManager) (*Deps, *bool) {
	cleaned := false
	deps := &Deps{
		ManagerFactory: func(_ context.Context, _ *config.Config) (SessionManager, func(), error) {
			return mgr, func() { cleaned = true }, nil
		},
	}
	return deps, &cleaned
}
