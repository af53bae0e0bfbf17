package uc2

import (
	"errors"

	"github.com/meigma/uc2/internal/blockcipher"
)

// Sentinel errors. Every error returned by the package wraps one of these and
// can be matched with errors.Is.
var (
	// ErrRange is returned when a buffer is too small for a declared structure.
	ErrRange = errors.New("uc2: buffer too small")

	// ErrUnsupportedVersion is returned for index versions other than 2.
	ErrUnsupportedVersion = errors.New("uc2: unsupported version")

	// ErrSizeMismatch is returned when an index buffer does not match its
	// declared body size.
	ErrSizeMismatch = errors.New("uc2: size mismatch")

	// ErrInvalidHeader is returned when an encrypted file header declares more
	// data than the buffer holds.
	ErrInvalidHeader = errors.New("uc2: invalid header")

	// ErrInvalidArgument is returned for bad cipher ids, empty names and
	// oversized decrypt requests.
	ErrInvalidArgument = errors.New("uc2: invalid argument")

	// ErrEmptyKey is returned when a required key is missing.
	ErrEmptyKey = errors.New("uc2: empty key")

	// ErrNotValidated is returned when an index is parsed before its header
	// has been validated.
	ErrNotValidated = errors.New("uc2: header not validated")

	// ErrEntryExceedsContainer is returned when an entry's data runs past the
	// end of the pkg buffer.
	ErrEntryExceedsContainer = errors.New("uc2: entry exceeds container")

	// ErrDecryptionFailed is returned when decrypted data fails its sanity
	// check, which usually means a wrong key.
	ErrDecryptionFailed = errors.New("uc2: decryption failed")

	// ErrHeaderEncrypted is returned by operations that need a decrypted pkg
	// header.
	ErrHeaderEncrypted = errors.New("uc2: header is encrypted")

	// ErrSizeOverflow is returned when offset arithmetic overflows.
	ErrSizeOverflow = errors.New("uc2: size overflow")
)

// ErrCipher is returned when the block cipher rejects a key, IV or ciphertext.
var ErrCipher = blockcipher.ErrCipher
