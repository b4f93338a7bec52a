package service

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewCipher(testEncryptionKey)
	require.NoError(t, err)

	encrypted, err := c.Encrypt("sk-very-secret-key")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-very-secret-key", encrypted)

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret-key", decrypted)
}

func TestCipherNonceMakesCiphertextUnique(t *testing.T) {
	t.Parallel()

	c, err := NewCipher(testEncryptionKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipherRejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	_, err := NewCipher("too-short")
	require.Error(t, err)
}

func TestCipherRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	c, err := NewCipher(testEncryptionKey)
	require.NoError(t, err)

	encrypted, err := c.Encrypt("payload")
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(sealed))
	assert.Error(t, err)
}

func TestCipherRejectsGarbageInput(t *testing.T) {
	t.Parallel()

	c, err := NewCipher(testEncryptionKey)
	require.NoError(t, err)

	_, err = c.Decrypt("not base64 at all!!!")
	assert.Error(t, err)
}
