package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// rawKeyBytes is the entropy of a freshly generated API key secret before
// hex-encoding (spec.md §3 "a random high-entropy secret issued once").
const rawKeyBytes = 32

// KeyPrefixLen is the number of characters of the raw secret stored in
// the clear for lookup (spec.md §3 "prefix: first 8 chars").
const KeyPrefixLen = 8

// GenerateAPIKey returns a new raw secret and its 8-char lookup prefix.
// The raw secret is returned to the caller exactly once and is never
// persisted (spec.md §3 "the raw secret is never persisted").
func GenerateAPIKey() (raw, prefix string, err error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, raw[:KeyPrefixLen], nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a raw secret, the
// value actually persisted in ApiKey.SecretSHA.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKey reports whether raw hashes to storedHash, comparing in
// constant time the way the teacher's tokenMatch does for bearer tokens.
func VerifyAPIKey(raw, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	got := HashAPIKey(raw)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}
