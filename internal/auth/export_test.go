// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import "time"

// SetNowFunc overrides the token service clock for tests.
func (s *SessionTokenService) SetNowFunc(now func() time.Time) {
	s.now = now
}

// SetNowFunc overrides the throttle clock for tests.
func (t *LoginThrottle) SetNowFunc(now func() time.Time) {
	t.now = now
}
