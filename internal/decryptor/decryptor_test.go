package decryptor

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/uc2/internal/blockcipher"
)

func encryptAES(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(plaintext))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out
}

func TestDecryptor_DefaultIV(t *testing.T) {
	t.Parallel()

	key := []byte("fedcba9876543210")
	plaintext := bytes.Repeat([]byte("0123456789ABCDEF"), 4)
	ciphertext := encryptAES(t, key, make([]byte, 16), plaintext)

	d, err := New(blockcipher.NewAES(), key, nil, false)
	require.NoError(t, err)

	got, err := d.DecryptToNew(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	// DecryptToNew must not touch its input.
	assert.NotEqual(t, plaintext, ciphertext)
}

func TestDecryptor_ExplicitIV(t *testing.T) {
	t.Parallel()

	key := []byte("fedcba9876543210")
	iv := []byte("ivivivivivivivii")
	plaintext := bytes.Repeat([]byte("x"), 32)
	buf := encryptAES(t, key, iv, plaintext)

	d, err := NewForID(blockcipher.AES, key, iv, false)
	require.NoError(t, err)

	n, err := d.DecryptInPlace(buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.Equal(t, plaintext, buf)
}

func TestDecryptor_DecryptTo(t *testing.T) {
	t.Parallel()

	key := []byte("fedcba9876543210")
	plaintext := bytes.Repeat([]byte("y"), 16)
	ciphertext := encryptAES(t, key, make([]byte, 16), plaintext)

	d, err := NewForID(blockcipher.AES, key, nil, false)
	require.NoError(t, err)

	out := make([]byte, 16)
	n, err := d.DecryptTo(out, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out[:n])
	assert.Equal(t, blockcipher.AES, d.Cipher().ID())
}

func TestNewForID_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewForID(9, make([]byte, 16), nil, false)
	require.ErrorIs(t, err, blockcipher.ErrUnknownCipher)

	_, err = NewForID(blockcipher.AES, make([]byte, 5), nil, false)
	require.ErrorIs(t, err, blockcipher.ErrCipher)
}
