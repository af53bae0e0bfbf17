package uc2

import (
	"errors"
	"fmt"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/decryptor"
)

// newHeaderDecryptor builds a decryptor for the cipher id stored in an index
// or encrypted file header. Bodies of both formats carry PKCS#7 padding.
func newHeaderDecryptor(id uint8, key []byte) (*decryptor.Decryptor, error) {
	d, err := decryptor.NewForID(blockcipher.ID(id), key, nil, true)
	if errors.Is(err, blockcipher.ErrUnknownCipher) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return d, err
}

// newAESDecryptor builds an unpadded AES-128 decryptor as used by pkg files.
func newAESDecryptor(key, iv []byte) (*decryptor.Decryptor, error) {
	return decryptor.New(blockcipher.NewAES(), key, iv, false)
}
