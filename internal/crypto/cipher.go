// Package crypto provides AES-256-GCM encryption for OAuth tokens at rest.
//
// Each encryption uses a fresh random nonce, so encrypting the same token
// twice produces different ciphertexts. The GCM tag gives integrity: a
// ciphertext produced under a different secret fails authentication on
// decrypt rather than yielding garbage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"trade-coach/internal/common/errors"
)

// kdf parameters; changing these invalidates existing ciphertexts.
const (
	kdfSalt       = "trade-coach-token-cipher"
	kdfIterations = 10000
)

// TokenCipher encrypts and decrypts token strings with a key derived from a
// configured secret. Safe for concurrent use.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher derives a 32-byte AES-256 key from the secret via PBKDF2.
// The secret comes from the configured precedence list (see config); it must
// not be empty.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, errors.ValidationError("token encryption secret cannot be empty")
	}

	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, 32, sha256.New)
	return &TokenCipher{key: key}, nil
}

// Encrypt encrypts a plaintext token and returns base64(nonce || ciphertext).
// Empty input passes through unencrypted as the empty string.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. A ciphertext that fails authentication (wrong
// secret, tampering) returns a decryption-typed error, which callers must
// keep distinct from a missing record.
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.DecryptionError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.DecryptionError("ciphertext too short", nil)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.DecryptionError("failed to decrypt token", err)
	}

	return string(plaintext), nil
}
