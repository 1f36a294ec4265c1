// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/oops"
)

// SessionTokenTTL is the expiry horizon of issued session tokens.
const SessionTokenTTL = 24 * time.Hour

// tokenHeader is the first segment of a session token. The optional key ID
// supports signing-key rotation: verifiers can route to the matching key.
type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// Claims is the payload segment of a session token.
type Claims struct {
	Subject   string `json:"sub"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// SessionTokenService issues and verifies compact HS256-signed session
// tokens. Verification is pure and safe for any number of concurrent
// callers; the only state is the signing key.
type SessionTokenService struct {
	key   []byte
	keyID string
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionTokenService creates a SessionTokenService. The signing key is
// injected from configuration and must be non-empty. keyID may be empty; a
// non-empty keyID is embedded in the token header. A zero ttl selects
// SessionTokenTTL.
func NewSessionTokenService(key []byte, keyID string, ttl time.Duration) (*SessionTokenService, error) {
	if len(key) == 0 {
		return nil, oops.Code("AUTH_EMPTY_SIGNING_KEY").Errorf("signing key cannot be empty")
	}
	if ttl == 0 {
		ttl = SessionTokenTTL
	}
	return &SessionTokenService{
		key:   key,
		keyID: keyID,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Issue builds a signed session token for the user. The payload carries the
// subject ID, display name, email, role, and issue/expiry instants in epoch
// seconds.
func (s *SessionTokenService) Issue(user *User) (string, error) {
	if user == nil {
		return "", oops.Code("TOKEN_NIL_USER").Errorf("user cannot be nil")
	}

	now := s.now().Unix()
	header := tokenHeader{Alg: "HS256", Typ: "JWT", Kid: s.keyID}
	claims := Claims{
		Subject:   user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now + int64(s.ttl/time.Second),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", oops.Code("TOKEN_ENCODE_FAILED").Wrap(err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", oops.Code("TOKEN_ENCODE_FAILED").Wrap(err)
	}

	signingInput := EncodeSegment(headerJSON) + "." + EncodeSegment(claimsJSON)
	return signingInput + "." + EncodeSegment(s.sign(signingInput)), nil
}

// Verify reports whether the token is well-formed, untampered, and
// unexpired. It fails closed: any malformed input yields false, never an
// error or panic, so the read path can call it unconditionally.
func (s *SessionTokenService) Verify(token string) bool {
	_, err := s.Decode(token)
	return err == nil
}

// Decode verifies the token and returns its claims. The signature is
// recomputed over the first two segments and compared in constant time;
// the expiry must be strictly in the future.
func (s *SessionTokenService) Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, oops.Code("TOKEN_MALFORMED").Errorf("expected 3 segments, got %d", len(parts))
	}

	signature, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, oops.Code("TOKEN_MALFORMED").Wrap(err)
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal(signature, expected) {
		return nil, oops.Code("TOKEN_BAD_SIGNATURE").Errorf("signature mismatch")
	}

	payload, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, oops.Code("TOKEN_MALFORMED").Wrap(err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, oops.Code("TOKEN_MALFORMED").Wrap(err)
	}

	if claims.ExpiresAt < s.now().Unix() {
		return nil, oops.Code("TOKEN_EXPIRED").Errorf("token has expired")
	}

	return &claims, nil
}

func (s *SessionTokenService) sign(input string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}
