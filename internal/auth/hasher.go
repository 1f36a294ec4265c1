// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for the upgrade-path hasher (OWASP recommendations).
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptySalt is returned when constructing a salted hasher without a salt.
var ErrEmptySalt = oops.Code("AUTH_EMPTY_SALT").Errorf("hashing salt cannot be empty")

// CredentialHasher transforms a plaintext secret into a storable digest and
// verifies presented secrets against stored digests.
type CredentialHasher interface {
	// Hash produces a storable digest of the secret.
	Hash(secret string) (string, error)

	// Verify checks if the secret matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// an undecodable digest.
	Verify(secret, digest string) (bool, error)

	// NeedsUpgrade reports whether the digest was produced by a weaker
	// scheme and should be recomputed on the next successful login.
	NeedsUpgrade(digest string) bool
}

// TokenDigester produces a deterministic digest of an opaque token so the
// digest can be used as a lookup key. Reset tokens rely on this: the stored
// digest must be recomputable from the presented plaintext.
type TokenDigester interface {
	Digest(value string) string
}

// SaltedSHA256Hasher implements CredentialHasher using a single
// application-wide salt and SHA-256, producing hex-encoded digests.
//
// This is the compatibility scheme: digests are directly comparable across
// deployments sharing the salt, which is what the stored account records
// require. The per-user-saltless design is deliberately weak against offline
// attacks; Argon2idHasher is the upgrade path.
type SaltedSHA256Hasher struct {
	salt string
}

// NewSaltedSHA256Hasher creates a SaltedSHA256Hasher. The salt is injected
// from configuration and must be non-empty.
func NewSaltedSHA256Hasher(salt string) (*SaltedSHA256Hasher, error) {
	if salt == "" {
		return nil, ErrEmptySalt
	}
	return &SaltedSHA256Hasher{salt: salt}, nil
}

// Digest returns hex(SHA-256(value + salt)). Deterministic across calls.
func (h *SaltedSHA256Hasher) Digest(value string) string {
	sum := sha256.Sum256([]byte(value + h.salt))
	return hex.EncodeToString(sum[:])
}

// Hash produces the salted digest of the secret. It never fails.
func (h *SaltedSHA256Hasher) Hash(secret string) (string, error) {
	return h.Digest(secret), nil
}

// Verify recomputes the digest and compares in constant time.
func (h *SaltedSHA256Hasher) Verify(secret, digest string) (bool, error) {
	computed := h.Digest(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1, nil
}

// NeedsUpgrade always returns false: this scheme is the storage baseline.
func (h *SaltedSHA256Hasher) NeedsUpgrade(string) bool {
	return false
}

// Argon2idHasher implements CredentialHasher using argon2id with a random
// per-credential salt, encoded as a PHC string. Accounts migrate to it
// lazily: NeedsUpgrade reports true for legacy hex digests, and the login
// path recomputes the digest after a successful verification.
type Argon2idHasher struct {
	// legacy verifies digests produced before the upgrade.
	legacy *SaltedSHA256Hasher
}

// NewArgon2idHasher creates an Argon2idHasher. The legacy salted hasher is
// required so pre-upgrade digests keep verifying.
func NewArgon2idHasher(legacy *SaltedSHA256Hasher) (*Argon2idHasher, error) {
	if legacy == nil {
		return nil, oops.Code("AUTH_NIL_LEGACY_HASHER").Errorf("legacy hasher is required")
	}
	return &Argon2idHasher{legacy: legacy}, nil
}

// Hash produces an argon2id digest of the secret.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks the secret against either an argon2id digest or, for
// not-yet-upgraded accounts, a legacy salted digest.
func (h *Argon2idHasher) Verify(secret, digest string) (bool, error) {
	if !strings.HasPrefix(digest, "$argon2id$") {
		return h.legacy.Verify(secret, digest)
	}

	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_DIGEST").Errorf("invalid digest format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").Wrap(err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").Wrap(err)
	}

	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_DIGEST").Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expected)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_DIGEST").Errorf("invalid digest key length: %d", keyLen)
	}

	computed := argon2.IDKey([]byte(secret), salt, time, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade returns true for digests not yet in argon2id form.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	return !strings.HasPrefix(digest, "$argon2id$")
}
