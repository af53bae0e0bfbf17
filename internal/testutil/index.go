package testutil

import (
	"bytes"
	"encoding/binary"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/keyhash"
	"github.com/meigma/uc2/internal/layout"
)

// IndexFixture describes an index file to build.
type IndexFixture struct {
	// Name is the index file name used for key derivation.
	Name string
	// Lines are written one per "\r\n" terminated line. The first line should
	// equal Name for the index to validate.
	Lines   []string
	Cipher  blockcipher.ID
	KeyFlag uint8
	Keys    *keyhash.Collection
}

// BuildIndex returns an encrypted index file.
func BuildIndex(f IndexFixture) ([]byte, error) {
	var body bytes.Buffer
	for _, line := range f.Lines {
		body.WriteString(line)
		body.WriteString("\r\n")
	}

	key, err := keyhash.IndexKey(f.KeyFlag, f.Name, f.Keys)
	if err != nil {
		return nil, err
	}
	enc, err := EncryptCBC(f.Cipher, key[:], body.Bytes(), true)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	hdr := layout.IndexHeader{
		Version:  2,
		Cipher:   uint8(f.Cipher),
		KeyFlag:  f.KeyFlag,
		BodySize: uint32(len(enc)), //nolint:gosec // fixtures are small
	}
	if err := binary.Write(&out, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	out.Write(enc)
	return out.Bytes(), nil
}

// EncryptedFileFixture describes a single encrypted ".e*" file to build.
type EncryptedFileFixture struct {
	Name      string
	Plaintext []byte
	Cipher    blockcipher.ID
	Flag      uint8
	Keys      *keyhash.Collection
	// Trailing is appended after the encrypted body.
	Trailing []byte
}

// BuildEncryptedFile returns an encrypted single file.
func BuildEncryptedFile(f EncryptedFileFixture) ([]byte, error) {
	key, err := keyhash.IndexKey(f.Flag, f.Name, f.Keys)
	if err != nil {
		return nil, err
	}
	enc, err := EncryptCBC(f.Cipher, key[:], f.Plaintext, true)
	if err != nil {
		return nil, err
	}

	hdr := layout.EncryptedFileHeader{
		Version:  2,
		Cipher:   uint8(f.Cipher),
		Flag:     f.Flag,
		FileSize: uint32(len(enc)), //nolint:gosec // fixtures are small
	}
	copy(hdr.Checksum[:], "0123456789")

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	out.Write(enc)
	out.Write(f.Trailing)
	return out.Bytes(), nil
}
