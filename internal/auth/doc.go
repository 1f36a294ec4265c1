// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

// Package auth provides authentication and credential-security primitives
// for LedgerKeep.
//
// # Domain Types
//
// Domain types (User, PasswordReset) should be created using their
// respective constructors:
//   - NewUser - creates a User with a validated email and credential digest
//   - NewPasswordReset - creates a PasswordReset with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - SessionManager - register, login, logout, session re-validation
//   - SessionTokenService - compact signed session tokens
//   - ResetTokenService - single-use password reset flow
//   - LoginThrottle - failed-attempt accounting and timed lockout
//
// Services are created with New* constructors that validate dependencies.
package auth
