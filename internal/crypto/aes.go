// Package crypto encrypts RequestTask.CallbackToken at rest with
// AES-256-GCM when a server-side key is configured (SPEC_FULL.md §3),
// transparent passthrough otherwise.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

const prefix = "aes-gcm:"

// Cipher wraps one derived AES-256-GCM key. callback_token is the only
// field this system ever encrypts, and its key comes from exactly one
// place (config.Config.EncryptionKey / REQSCHED_ENCRYPTION_KEY), so the
// key is derived once at process start into a reusable cipher.AEAD
// rather than re-derived on every Insert/scan.
type Cipher struct {
	gcm cipher.AEAD
}

// New builds a Cipher from key. A nil *Cipher (returned when key is
// empty) is a valid "no encryption configured" value: its methods pass
// their argument through unchanged, matching the store layer's documented
// fallback to plain text (internal/store/types.go StoreConfig.EncryptionKey).
func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, nil
	}
	keyBytes, err := deriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{gcm: gcm}, nil
}

// EncryptCallbackToken returns "aes-gcm:" + base64(nonce+ciphertext+tag).
// A nil Cipher or an empty token is returned unchanged.
func (c *Cipher) EncryptCallbackToken(token string) (string, error) {
	if c == nil || token == "" {
		return token, nil
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := c.gcm.Seal(nonce, nonce, []byte(token), nil)
	return prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptCallbackToken reverses EncryptCallbackToken. A stored value
// without the "aes-gcm:" prefix is returned as-is, so rows written while
// encryption was unconfigured (or before it was introduced) stay
// readable once a key is later set.
func (c *Cipher) DecryptCallbackToken(stored string) (string, error) {
	if c == nil || stored == "" || !IsEncrypted(stored) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return stored, nil // not valid base64 -> treat as plain text
	}
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return stored, nil // too short -> treat as plain text
	}
	plaintext, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.New("decrypt callback_token failed: invalid key or corrupted data")
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the "aes-gcm:" prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// deriveKey converts the configured encryption key string to 32 raw AES
// key bytes: hex-encoded (64 chars), base64-encoded (44 chars), or raw
// 32 bytes, matching whichever form an operator finds easiest to set in
// REQSCHED_ENCRYPTION_KEY.
func deriveKey(input string) ([]byte, error) {
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}
	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
	}
	if len(input) == 32 {
		return []byte(input), nil
	}
	return nil, errors.New("encryption key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes)")
}
