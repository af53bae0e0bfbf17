// Package layout defines the packed on-disk structures of the archive formats.
//
// Every structure is little-endian with no padding between fields. The Go
// structs mirror the byte layout field for field and are decoded with
// encoding/binary, which never inserts alignment padding.
package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Structure sizes in bytes.
const (
	IndexHeaderSize         = 8
	EncryptedFileHeaderSize = 18
	HashPrefixSize          = 33
	PkgHeaderSize           = 272
	PkgHeaderTFOSize        = 16
	EntryHeaderSize         = 288
	PathSize                = 261
)

// IndexHeader precedes the encrypted body of an index file.
type IndexHeader struct {
	Version  uint16
	Cipher   uint8
	KeyFlag  uint8
	BodySize uint32
}

// EncryptedFileHeader precedes the encrypted body of a ".e*" file.
type EncryptedFileHeader struct {
	Checksum [10]byte
	Version  uint16
	Cipher   uint8
	Flag     uint8
	FileSize uint32
}

// PkgHeader is the encrypted standard pkg header that follows the hash prefix.
type PkgHeader struct {
	DirectoryPath [PathSize]byte
	Sentinel      uint32
	EntryCount    uint32
	Pad           [3]byte
}

// PkgHeaderTFO is the encrypted TFO pkg header that follows the hash prefix.
type PkgHeaderTFO struct {
	Sentinel   uint32
	EntryCount uint32
	Unknown2   uint32
	Padding    uint32
}

// EntryHeader is a standard pkg entry record.
type EntryHeader struct {
	Path          [PathSize]byte
	Offset        uint32
	EncryptedSize uint32
	DecryptedSize uint32
	Unknown       uint8
	Encrypted     uint8
	Pad           [13]byte
}

// EntryHeaderTFO is a TFO pkg entry record with 64-bit sizes.
type EntryHeaderTFO struct {
	Path          [PathSize]byte
	Offset        uint64
	EncryptedSize uint64
	DecryptedSize uint64
	Unknown       uint8
	Encrypted     uint8
	Pad           [1]byte
}

// DecodeIndexHeader decodes the first IndexHeaderSize bytes of b.
func DecodeIndexHeader(b []byte) (IndexHeader, error) {
	var h IndexHeader
	err := decode(b, &h)
	return h, err
}

// DecodeEncryptedFileHeader decodes the first EncryptedFileHeaderSize bytes of b.
func DecodeEncryptedFileHeader(b []byte) (EncryptedFileHeader, error) {
	var h EncryptedFileHeader
	err := decode(b, &h)
	return h, err
}

func decode(b []byte, v any) error {
	if _, err := binary.Decode(b, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// CString returns the bytes of b up to the first NUL as a string.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
