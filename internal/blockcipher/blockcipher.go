// Package blockcipher implements the CBC-mode block ciphers used by the
// archive formats: AES-128, single DES and Blowfish.
//
// A Cipher is initialized once with a key and IV and then decrypts any number
// of buffers. Every Decrypt call starts a fresh CBC chain from the IV.
package blockcipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// ID identifies a cipher as stored in artifact headers.
type ID uint8

// Cipher ids used by index and encrypted file headers.
const (
	DES      ID = 1
	AES      ID = 2
	Blowfish ID = 3
)

// String returns the cipher name.
func (id ID) String() string {
	switch id {
	case DES:
		return "des-cbc"
	case AES:
		return "aes-128-cbc"
	case Blowfish:
		return "blowfish-cbc"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Sentinel errors.
var (
	// ErrCipher is returned when a key, IV or ciphertext is unusable.
	ErrCipher = errors.New("blockcipher: decryption failed")

	// ErrUnknownCipher is returned by New for ids outside DES, AES and Blowfish.
	ErrUnknownCipher = errors.New("blockcipher: unknown cipher id")
)

// Cipher decrypts data in CBC mode.
type Cipher interface {
	// Init sets the key and IV. The IV must hold at least one block; only the
	// first BlockSize bytes are used. When padding is true, Decrypt strips
	// PKCS#7 padding from its output.
	Init(key, iv []byte, padding bool) error

	// Decrypt decrypts src into dst and returns the number of plaintext bytes.
	// dst must be at least len(src) bytes and may be src itself; partially
	// overlapping buffers are not allowed. src must be a non-empty multiple
	// of the block size.
	Decrypt(dst, src []byte) (int, error)

	// BlockSize returns the cipher block size in bytes.
	BlockSize() int

	// ID returns the header id of the cipher.
	ID() ID
}

// New returns an uninitialized cipher for id.
func New(id ID) (Cipher, error) {
	switch id {
	case DES:
		return NewDES(), nil
	case AES:
		return NewAES(), nil
	case Blowfish:
		return NewBlowfish(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCipher, uint8(id))
	}
}

// NewAES returns an AES-128-CBC cipher. Keys must be exactly 16 bytes.
func NewAES() Cipher {
	return &cbc{
		id:        AES,
		blockSize: aes.BlockSize,
		newBlock: func(key []byte) (gocipher.Block, error) {
			if len(key) != 16 {
				return nil, fmt.Errorf("aes-128 key must be 16 bytes, got %d", len(key))
			}
			return aes.NewCipher(key)
		},
	}
}

// NewDES returns a DES-CBC cipher.
//
// Only the first half of the supplied key material is used, so the usual
// 16-byte derived key yields the 8-byte DES key.
func NewDES() Cipher {
	return &cbc{
		id:        DES,
		blockSize: des.BlockSize,
		newBlock: func(key []byte) (gocipher.Block, error) {
			return des.NewCipher(key[:len(key)/2])
		},
	}
}

// NewBlowfish returns a Blowfish-CBC cipher. Keys may be 1 to 56 bytes.
func NewBlowfish() Cipher {
	return &cbc{
		id:        Blowfish,
		blockSize: blowfish.BlockSize,
		newBlock: func(key []byte) (gocipher.Block, error) {
			return blowfish.NewCipher(key)
		},
	}
}

type cbc struct {
	id        ID
	blockSize int
	newBlock  func(key []byte) (gocipher.Block, error)

	block   gocipher.Block
	iv      []byte
	padding bool
}

func (c *cbc) ID() ID         { return c.id }
func (c *cbc) BlockSize() int { return c.blockSize }

func (c *cbc) Init(key, iv []byte, padding bool) error {
	if len(iv) < c.blockSize {
		return fmt.Errorf("%w: %s iv must be at least %d bytes, got %d", ErrCipher, c.id, c.blockSize, len(iv))
	}
	block, err := c.newBlock(key)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCipher, c.id, err)
	}
	c.block = block
	c.iv = append(c.iv[:0], iv[:c.blockSize]...)
	c.padding = padding
	return nil
}

func (c *cbc) Decrypt(dst, src []byte) (int, error) {
	if c.block == nil {
		return 0, fmt.Errorf("%w: %s not initialized", ErrCipher, c.id)
	}
	if len(src) < c.blockSize {
		return 0, fmt.Errorf("%w: %s ciphertext of %d bytes is shorter than one block", ErrCipher, c.id, len(src))
	}
	if len(src)%c.blockSize != 0 {
		return 0, fmt.Errorf("%w: %s ciphertext of %d bytes is not block aligned", ErrCipher, c.id, len(src))
	}
	if len(dst) < len(src) {
		return 0, fmt.Errorf("%w: output buffer too small", ErrCipher)
	}

	out := dst[:len(src)]
	gocipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, src)

	if !c.padding {
		return len(out), nil
	}
	return unpad(out, c.blockSize)
}

// unpad validates PKCS#7 padding and returns the unpadded length.
func unpad(data []byte, blockSize int) (int, error) {
	n := len(data)
	pad := int(data[n-1])
	if pad == 0 || pad > blockSize || pad > n {
		return 0, fmt.Errorf("%w: invalid padding", ErrCipher)
	}
	for _, b := range data[n-pad:] {
		if int(b) != pad {
			return 0, fmt.Errorf("%w: invalid padding", ErrCipher)
		}
	}
	return n - pad, nil
}
