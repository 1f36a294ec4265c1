// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package auth

import (
	"encoding/base64"
	"strings"

	"github.com/samber/oops"
)

// Session token segments use the URL-safe base64 alphabet with padding
// stripped. Encoding starts from standard base64 and rewrites the two
// alphabet characters; decoding restores padding from the input length
// before handing back to the standard decoder. The two directions must
// round-trip exactly for every byte sequence the signer produces.

// EncodeSegment encodes bytes as unpadded URL-safe base64.
func EncodeSegment(data []byte) string {
	s := base64.StdEncoding.EncodeToString(data)
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", "-")
	return strings.ReplaceAll(s, "/", "_")
}

// DecodeSegment reverses EncodeSegment. Padding is restored based on the
// input length modulo 4: a remainder of 2 gains "==", 3 gains "=", 0 needs
// none, and 1 is never a valid base64 length.
func DecodeSegment(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	case 1:
		return nil, oops.Code("TOKEN_BAD_SEGMENT").Errorf("invalid segment length %d", len(s))
	}

	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, oops.Code("TOKEN_BAD_SEGMENT").Wrap(err)
	}
	return data, nil
}
