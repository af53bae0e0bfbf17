// Package testutil builds encrypted fixtures for tests and benchmarks.
//
// Every builder performs the encrypt side of the formats the library reads,
// so tests never depend on proprietary sample files.
package testutil

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/des"
	"fmt"

	"golang.org/x/crypto/blowfish"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/keyhash"
)

// Keys returns a deterministic key collection where every slot differs.
func Keys() *keyhash.Collection {
	var keys keyhash.Collection
	for i := range keys {
		for j := range keys[i] {
			keys[i][j] = byte(i*keyhash.KeySize + j + 1)
		}
	}
	return &keys
}

// Pattern returns n deterministic bytes that never repeat within a block.
func Pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7) ^ byte(i>>8) ^ seed
	}
	return out
}

// EncryptCBC encrypts plaintext with a zero IV. When pad is true PKCS#7
// padding is appended first; otherwise plaintext must be block aligned.
func EncryptCBC(id blockcipher.ID, key, plaintext []byte, pad bool) ([]byte, error) {
	block, err := newBlock(id, key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	src := plaintext
	if pad {
		src = pkcs7Pad(plaintext, bs)
	}
	if len(src)%bs != 0 {
		return nil, fmt.Errorf("testutil: plaintext of %d bytes is not block aligned", len(src))
	}
	out := make([]byte, len(src))
	gocipher.NewCBCEncrypter(block, make([]byte, bs)).CryptBlocks(out, src)
	return out, nil
}

func newBlock(id blockcipher.ID, key []byte) (gocipher.Block, error) {
	switch id {
	case blockcipher.AES:
		return aes.NewCipher(key)
	case blockcipher.DES:
		return des.NewCipher(key[:len(key)/2])
	case blockcipher.Blowfish:
		return blowfish.NewCipher(key)
	default:
		return nil, fmt.Errorf("testutil: unknown cipher %d", uint8(id))
	}
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}
