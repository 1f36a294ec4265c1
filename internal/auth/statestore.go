// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// Well-known storage keys for the persisted session state. Both entries are
// written and cleared together.
const (
	StorageKeyToken  = "auth_token"
	StorageKeyUserID = "user_id"
)

// SessionStore persists the opaque session token and user ID between runs.
// Load returns empty strings (and no error) when nothing is persisted.
type SessionStore interface {
	Save(token, userID string) error
	Load() (token, userID string, err error)
	Clear() error
}

// FileSessionStore is a SessionStore backed by a JSON file, created with
// owner-only permissions.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore creates a FileSessionStore writing to path.
func NewFileSessionStore(path string) (*FileSessionStore, error) {
	if path == "" {
		return nil, oops.Code("SESSION_STORE_INVALID_PATH").Errorf("path cannot be empty")
	}
	return &FileSessionStore{path: path}, nil
}

// Save writes both entries, replacing any prior state.
func (s *FileSessionStore) Save(token, userID string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return oops.Code("SESSION_STORE_SAVE_FAILED").With("path", s.path).Wrap(err)
	}

	data, err := json.Marshal(map[string]string{
		StorageKeyToken:  token,
		StorageKeyUserID: userID,
	})
	if err != nil {
		return oops.Code("SESSION_STORE_SAVE_FAILED").Wrap(err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return oops.Code("SESSION_STORE_SAVE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// Load reads the persisted entries. A missing file is not an error.
func (s *FileSessionStore) Load() (string, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", nil
		}
		return "", "", oops.Code("SESSION_STORE_LOAD_FAILED").With("path", s.path).Wrap(err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return "", "", oops.Code("SESSION_STORE_LOAD_FAILED").With("path", s.path).Wrap(err)
	}

	return entries[StorageKeyToken], entries[StorageKeyUserID], nil
}

// Clear removes the persisted state. Clearing absent state is a no-op.
func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("SESSION_STORE_CLEAR_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// MemorySessionStore is an in-process SessionStore for tests and embedded
// callers that don't persist across runs.
type MemorySessionStore struct {
	token  string
	userID string
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Save stores both entries.
func (s *MemorySessionStore) Save(token, userID string) error {
	s.token = token
	s.userID = userID
	return nil
}

// Load returns the stored entries.
func (s *MemorySessionStore) Load() (string, string, error) {
	return s.token, s.userID, nil
}

// Clear removes both entries.
func (s *MemorySessionStore) Clear() error {
	s.token = ""
	s.userID = ""
	return nil
}
