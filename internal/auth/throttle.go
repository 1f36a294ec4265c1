// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"sync"
	"time"
)

// Throttle policy. Both windows are policy constants, not computed.
const (
	// AttemptWindow is the rolling window for failure accumulation. A
	// failure recorded after the window elapses resets the count to 1.
	AttemptWindow = time.Hour

	// LockoutThreshold is the failure count that triggers a lockout.
	LockoutThreshold = 5

	// LockoutDuration is how long login attempts stay blocked.
	LockoutDuration = 30 * time.Minute
)

// Attempt records failed login accounting for one identifier.
type Attempt struct {
	Count       int
	LastAttempt time.Time
}

// LockoutStatus is the result of a lockout check.
type LockoutStatus struct {
	Locked           bool
	MinutesRemaining int
}

// AttemptStore persists throttle records keyed by identifier. Implementations
// need not be atomic across calls; LoginThrottle serializes its own
// read-modify-write cycles.
type AttemptStore interface {
	Attempt(id string) (Attempt, bool)
	PutAttempt(id string, a Attempt)
	Lockout(id string) (time.Time, bool)
	PutLockout(id string, until time.Time)
	Remove(id string)
}

// MemoryAttemptStore is the default in-process AttemptStore.
type MemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt
	lockouts map[string]time.Time
}

// NewMemoryAttemptStore creates an empty MemoryAttemptStore.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]Attempt),
		lockouts: make(map[string]time.Time),
	}
}

// Attempt returns the attempt record for id.
func (s *MemoryAttemptStore) Attempt(id string) (Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	return a, ok
}

// PutAttempt stores the attempt record for id.
func (s *MemoryAttemptStore) PutAttempt(id string, a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id] = a
}

// Lockout returns the lockout expiry for id.
func (s *MemoryAttemptStore) Lockout(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.lockouts[id]
	return until, ok
}

// PutLockout stores the lockout expiry for id.
func (s *MemoryAttemptStore) PutLockout(id string, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockouts[id] = until
}

// Remove clears both the attempt and lockout records for id.
func (s *MemoryAttemptStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, id)
	delete(s.lockouts, id)
}

// LoginThrottle tracks failed login attempts per identifier and enforces a
// timed lockout. Each identifier moves between three states: clear (no
// record), accumulating (1 to LockoutThreshold-1 recent failures), and
// locked (threshold reached inside the window).
//
// All record mutation happens under the throttle's own mutex, so concurrent
// requests for the same identifier cannot lose updates regardless of the
// backing store.
type LoginThrottle struct {
	mu    sync.Mutex
	store AttemptStore
	now   func() time.Time
}

// NewLoginThrottle creates a LoginThrottle. A nil store selects a fresh
// MemoryAttemptStore.
func NewLoginThrottle(store AttemptStore) *LoginThrottle {
	if store == nil {
		store = NewMemoryAttemptStore()
	}
	return &LoginThrottle{store: store, now: time.Now}
}

// RecordFailure registers a failed attempt for id. A failure more than
// AttemptWindow after the previous one resets the count to 1; otherwise the
// count increments, and reaching LockoutThreshold arms a lockout expiring
// LockoutDuration from now.
func (t *LoginThrottle) RecordFailure(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	a, ok := t.store.Attempt(id)
	if !ok || now.Sub(a.LastAttempt) > AttemptWindow {
		t.store.PutAttempt(id, Attempt{Count: 1, LastAttempt: now})
		return
	}

	a.Count++
	a.LastAttempt = now
	t.store.PutAttempt(id, a)

	if a.Count >= LockoutThreshold {
		t.store.PutLockout(id, now.Add(LockoutDuration))
	}
}

// CheckLockout reports whether id is locked out and, if so, the whole
// minutes remaining (rounded up, so a fresh lockout reports 30).
func (t *LoginThrottle) CheckLockout(id string) LockoutStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.store.Lockout(id)
	if !ok {
		return LockoutStatus{}
	}

	remaining := until.Sub(t.now())
	if remaining <= 0 {
		return LockoutStatus{}
	}

	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return LockoutStatus{Locked: true, MinutesRemaining: minutes}
}

// Clear removes all throttle state for id. Called on successful
// authentication.
func (t *LoginThrottle) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Remove(id)
}
