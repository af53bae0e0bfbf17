package uc2

import (
	"fmt"
	"log/slog"

	"github.com/meigma/uc2/internal/layout"
)

// EncryptedFileOption configures an EncryptedFile.
type EncryptedFileOption func(*EncryptedFile)

// WithEncryptedFileLogger sets the logger for encrypted file operations.
// If not set, logging is disabled.
func WithEncryptedFileLogger(logger *slog.Logger) EncryptedFileOption {
	return func(f *EncryptedFile) {
		f.logger = logger
	}
}

// EncryptedFile is a single encrypted file, usually with an ".e" prefixed
// extension such as ".etxt" or ".ecsv". It is keyed like an index file.
type EncryptedFile struct {
	name   string
	buf    []byte
	keys   *KeyCollection
	header layout.EncryptedFileHeader
	logger *slog.Logger

	plain []byte
}

// EncryptedFileHeaderSize returns the size of the encrypted file header.
func EncryptedFileHeaderSize() uint64 {
	return layout.EncryptedFileHeaderSize
}

// IsEncryptedFile reports whether buf holds a header whose declared size
// fits the buffer. The format has no signature, so this is a size check only.
func IsEncryptedFile(buf []byte) bool {
	_, err := encryptedFileHeader(buf)
	return err == nil
}

func encryptedFileHeader(buf []byte) (layout.EncryptedFileHeader, error) {
	if len(buf) < layout.EncryptedFileHeaderSize {
		return layout.EncryptedFileHeader{}, fmt.Errorf("%w: file of %d bytes has no header", ErrInvalidHeader, len(buf))
	}
	hdr, err := layout.DecodeEncryptedFileHeader(buf)
	if err != nil {
		return hdr, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if layout.EncryptedFileHeaderSize+uint64(hdr.FileSize) > uint64(len(buf)) {
		return hdr, fmt.Errorf("%w: header declares %d bytes, buffer holds %d",
			ErrInvalidHeader, hdr.FileSize, len(buf)-layout.EncryptedFileHeaderSize)
	}
	return hdr, nil
}

// NewEncryptedFile validates the header in buf and returns an EncryptedFile.
// name is the file's base name, which is part of the key derivation.
func NewEncryptedFile(name string, buf []byte, keys *KeyCollection, opts ...EncryptedFileOption) (*EncryptedFile, error) {
	hdr, err := encryptedFileHeader(buf)
	if err != nil {
		return nil, err
	}
	f := &EncryptedFile{name: name, buf: buf, keys: keys, header: hdr}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (f *EncryptedFile) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Decrypt decrypts the body in place and returns the plaintext as a view into
// the buffer. Later calls return the same view.
func (f *EncryptedFile) Decrypt() ([]byte, error) {
	if f.plain != nil {
		return f.plain, nil
	}
	if f.keys == nil {
		return nil, fmt.Errorf("%w: no key collection", ErrEmptyKey)
	}

	body := f.buf[layout.EncryptedFileHeaderSize : layout.EncryptedFileHeaderSize+int(f.header.FileSize)]
	if len(body) == 0 {
		f.plain = body
		return f.plain, nil
	}

	key, err := DeriveIndexKey(f.header.Flag, f.name, f.keys)
	if err != nil {
		return nil, err
	}
	dec, err := newHeaderDecryptor(f.header.Cipher, key[:])
	if err != nil {
		return nil, err
	}
	n, err := dec.DecryptInPlace(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecryptionFailed, f.name, err)
	}

	f.plain = body[:n:n]
	f.log().Debug("encrypted file decrypted",
		"name", f.name,
		"cipher", dec.Cipher().ID(),
		"size", n)
	return f.plain, nil
}

// Name returns the file name.
func (f *EncryptedFile) Name() string {
	return f.name
}

// Checksum returns the unvalidated 10-byte checksum field of the header.
func (f *EncryptedFile) Checksum() [10]byte {
	return f.header.Checksum
}
