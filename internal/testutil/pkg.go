package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/keyhash"
	"github.com/meigma/uc2/internal/layout"
	"github.com/meigma/uc2/internal/pathutil"
)

// ChunkSize is the span after which entry data restarts its CBC chain.
const ChunkSize = 0x10000

// PkgFile is one entry of a PkgFixture.
type PkgFile struct {
	// Path is stored as given, normally backslash separated.
	Path    string
	Data    []byte
	Plain   bool
	Unknown uint8
}

// PkgFixture describes a pkg file to build.
type PkgFixture struct {
	Name          string
	EntryKey      string
	DataKey       string
	TFO           bool
	Hash          string
	DirectoryPath string
	Files         []PkgFile
}

// BuiltPkg is an encrypted pkg file and the layout of its entries.
type BuiltPkg struct {
	Data []byte
	// DataStart is the offset of the first entry's data.
	DataStart int
	// Offsets holds each entry's absolute data offset.
	Offsets []int
	// EncryptedSizes holds each entry's stored size.
	EncryptedSizes []int
}

// BuildPkg returns an encrypted pkg file.
//
// Encrypted entry data is zero padded to the AES block size and encrypted in
// ChunkSize pieces, each with a zero IV.
func BuildPkg(f PkgFixture) (*BuiltPkg, error) {
	headerKey, err := keyhash.TruncatedFileKey(f.Name, f.EntryKey)
	if err != nil {
		return nil, err
	}

	var (
		data    bytes.Buffer
		records bytes.Buffer
		built   = &BuiltPkg{}
		offsets []uint64
	)
	for _, file := range f.Files {
		offset := uint64(data.Len())
		stored := file.Data
		if !file.Plain {
			stored, err = encryptEntry(file, f.DataKey)
			if err != nil {
				return nil, err
			}
		}
		data.Write(stored)
		offsets = append(offsets, offset)
		built.EncryptedSizes = append(built.EncryptedSizes, len(stored))

		rec, err := entryRecord(f.TFO, file, offset, uint64(len(stored)))
		if err != nil {
			return nil, err
		}
		enc, err := EncryptCBC(blockcipher.AES, headerKey, rec, false)
		if err != nil {
			return nil, err
		}
		records.Write(enc)
	}

	hdr, err := pkgHeader(f, len(f.Files))
	if err != nil {
		return nil, err
	}
	encHdr, err := EncryptCBC(blockcipher.AES, headerKey, hdr, false)
	if err != nil {
		return nil, err
	}

	var prefix [layout.HashPrefixSize]byte
	copy(prefix[:layout.HashPrefixSize-1], f.Hash)

	var out bytes.Buffer
	out.Write(prefix[:])
	out.Write(encHdr)
	out.Write(records.Bytes())
	built.DataStart = out.Len()
	out.Write(data.Bytes())

	built.Data = out.Bytes()
	for _, off := range offsets {
		built.Offsets = append(built.Offsets, built.DataStart+int(off)) //nolint:gosec // fixtures are small
	}
	return built, nil
}

func encryptEntry(file PkgFile, dataKey string) ([]byte, error) {
	name := pathutil.Base(pathutil.EntryPath(file.Path))
	key, err := keyhash.TruncatedFileKey(name, dataKey)
	if err != nil {
		return nil, err
	}

	padded := file.Data
	if rem := len(padded) % 16; rem != 0 {
		padded = append(bytes.Clone(padded), make([]byte, 16-rem)...)
	}
	out := make([]byte, 0, len(padded))
	for off := 0; off < len(padded); off += ChunkSize {
		end := min(off+ChunkSize, len(padded))
		enc, err := EncryptCBC(blockcipher.AES, key, padded[off:end], false)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func entryRecord(tfo bool, file PkgFile, offset, encSize uint64) ([]byte, error) {
	var path [layout.PathSize]byte
	if len(file.Path) >= layout.PathSize {
		return nil, fmt.Errorf("testutil: path %q too long", file.Path)
	}
	copy(path[:], file.Path)

	var encrypted uint8
	if !file.Plain {
		encrypted = 1
	}
	decSize := uint64(len(file.Data))

	var v any
	if tfo {
		v = layout.EntryHeaderTFO{
			Path: path, Offset: offset, EncryptedSize: encSize, DecryptedSize: decSize,
			Unknown: file.Unknown, Encrypted: encrypted,
		}
	} else {
		v = layout.EntryHeader{
			Path:          path,
			Offset:        uint32(offset),  //nolint:gosec // fixtures are small
			EncryptedSize: uint32(encSize), //nolint:gosec // fixtures are small
			DecryptedSize: uint32(decSize), //nolint:gosec // fixtures are small
			Unknown:       file.Unknown,
			Encrypted:     encrypted,
		}
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pkgHeader(f PkgFixture, count int) ([]byte, error) {
	var v any
	if f.TFO {
		v = layout.PkgHeaderTFO{EntryCount: uint32(count)} //nolint:gosec // fixtures are small
	} else {
		h := layout.PkgHeader{EntryCount: uint32(count)} //nolint:gosec // fixtures are small
		copy(h.DirectoryPath[:layout.PathSize-1], f.DirectoryPath)
		v = h
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
