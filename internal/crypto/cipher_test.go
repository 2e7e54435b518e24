package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/common/errors"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher("test-secret")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"access token", "ya29.a0AfH6SMBx7rN2example"},
		{"refresh token", "1//0gexample-refresh-token"},
		{"unicode", "token-événement-日本語"},
		{"long value", string(make([]byte, 4096))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := cipher.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, encrypted)

			decrypted, err := cipher.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestTokenCipher_EmptyStringPassthrough(t *testing.T) {
	cipher, err := NewTokenCipher("test-secret")
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)

	decrypted, err := cipher.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}

func TestTokenCipher_NonDeterministicNonce(t *testing.T) {
	cipher, err := NewTokenCipher("test-secret")
	require.NoError(t, err)

	first, err := cipher.Encrypt("same-token")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenCipher_WrongSecretFailsDistinctly(t *testing.T) {
	cipherA, err := NewTokenCipher("secret-a")
	require.NoError(t, err)
	cipherB, err := NewTokenCipher("secret-b")
	require.NoError(t, err)

	encrypted, err := cipherA.Encrypt("sensitive-token")
	require.NoError(t, err)

	_, err = cipherB.Decrypt(encrypted)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDecryption))
}

func TestTokenCipher_InvalidCiphertext(t *testing.T) {
	cipher, err := NewTokenCipher("test-secret")
	require.NoError(t, err)

	_, err = cipher.Decrypt("not-valid-base64!!!")
	assert.True(t, errors.IsType(err, errors.ErrTypeDecryption))

	_, err = cipher.Decrypt("c2hvcnQ=")
	assert.True(t, errors.IsType(err, errors.ErrTypeDecryption))
}

func TestNewTokenCipher_EmptySecret(t *testing.T) {
	_, err := NewTokenCipher("")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
