// Package decryptor binds a block cipher to a resolved key and IV.
package decryptor

import (
	"github.com/meigma/uc2/internal/blockcipher"
)

// DefaultIVSize is the length of the zero IV used when none is supplied.
const DefaultIVSize = 16

// Decryptor decrypts buffers with a fixed cipher, key and IV.
type Decryptor struct {
	cipher blockcipher.Cipher
}

// New initializes c with key and iv. An empty iv selects a zero IV of
// DefaultIVSize bytes.
func New(c blockcipher.Cipher, key, iv []byte, padding bool) (*Decryptor, error) {
	if len(iv) == 0 {
		iv = make([]byte, DefaultIVSize)
	}
	if err := c.Init(key, iv, padding); err != nil {
		return nil, err
	}
	return &Decryptor{cipher: c}, nil
}

// NewForID creates the cipher identified by id and initializes it.
func NewForID(id blockcipher.ID, key, iv []byte, padding bool) (*Decryptor, error) {
	c, err := blockcipher.New(id)
	if err != nil {
		return nil, err
	}
	return New(c, key, iv, padding)
}

// DecryptInPlace decrypts buf over itself and returns the plaintext length,
// which is shorter than len(buf) only when padding is enabled.
func (d *Decryptor) DecryptInPlace(buf []byte) (int, error) {
	return d.cipher.Decrypt(buf, buf)
}

// DecryptTo decrypts src into dst and returns the plaintext length.
func (d *Decryptor) DecryptTo(dst, src []byte) (int, error) {
	return d.cipher.Decrypt(dst, src)
}

// DecryptToNew decrypts src into a newly allocated slice.
func (d *Decryptor) DecryptToNew(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	n, err := d.cipher.Decrypt(out, src)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Cipher returns the underlying cipher.
func (d *Decryptor) Cipher() blockcipher.Cipher {
	return d.cipher
}
