// Package redact produces log-safe stand-ins for secrets.
package redact

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintSize is the digest length in bytes
const fingerprintSize = 6

// Token returns a short stable fingerprint of a push token so log lines can
// be correlated without exposing the token itself.
func Token(token string) string {
	if token == "" {
		return ""
	}
	h, err := blake2b.New(fingerprintSize, nil)
	if err != nil {
		return "invalid"
	}
	h.Write([]byte(token))
	return "tok_" + hex.EncodeToString(h.Sum(nil))
}
