package layout

import (
	"encoding/binary"
	"fmt"
)

// Mode selects one of the two pkg header generations.
type Mode uint8

const (
	// Standard is the original layout with a 272-byte header and 32-bit sizes.
	Standard Mode = iota
	// TFO is the later layout with a 16-byte header and 64-bit sizes.
	TFO
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case TFO:
		return "tfo"
	default:
		return "unknown"
	}
}

// EntryRecord is a decoded pkg entry record independent of Mode.
type EntryRecord struct {
	Path          string
	Offset        uint64
	EncryptedSize uint64
	DecryptedSize uint64
	Unknown       uint8
	Encrypted     bool
}

// Layout reads the mode specific parts of a pkg file.
//
// The header argument of Sentinel and EntryCount is the encrypted header
// region that follows the hash prefix, at least HeaderSize bytes long.
type Layout interface {
	Mode() Mode
	HeaderSize() int
	EntryHeaderSize() int
	Sentinel(header []byte) uint32
	EntryCount(header []byte) uint32
	DecodeEntry(record []byte) (EntryRecord, error)
}

// For returns the layout for m. Unknown modes fall back to Standard.
func For(m Mode) Layout {
	if m == TFO {
		return tfoLayout{}
	}
	return standardLayout{}
}

// FullHeaderSize returns the hash prefix plus header size for m.
func FullHeaderSize(m Mode) int {
	return HashPrefixSize + For(m).HeaderSize()
}

type standardLayout struct{}

func (standardLayout) Mode() Mode           { return Standard }
func (standardLayout) HeaderSize() int      { return PkgHeaderSize }
func (standardLayout) EntryHeaderSize() int { return EntryHeaderSize }

// The sentinel and count follow the 261-byte directory path.
func (standardLayout) Sentinel(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[PathSize:])
}

func (standardLayout) EntryCount(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[PathSize+4:])
}

func (standardLayout) DecodeEntry(record []byte) (EntryRecord, error) {
	var h EntryHeader
	if err := decode(record, &h); err != nil {
		return EntryRecord{}, err
	}
	return EntryRecord{
		Path:          CString(h.Path[:]),
		Offset:        uint64(h.Offset),
		EncryptedSize: uint64(h.EncryptedSize),
		DecryptedSize: uint64(h.DecryptedSize),
		Unknown:       h.Unknown,
		Encrypted:     h.Encrypted != 0,
	}, nil
}

type tfoLayout struct{}

func (tfoLayout) Mode() Mode           { return TFO }
func (tfoLayout) HeaderSize() int      { return PkgHeaderTFOSize }
func (tfoLayout) EntryHeaderSize() int { return EntryHeaderSize }

func (tfoLayout) Sentinel(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header)
}

func (tfoLayout) EntryCount(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[4:])
}

func (tfoLayout) DecodeEntry(record []byte) (EntryRecord, error) {
	var h EntryHeaderTFO
	if err := decode(record, &h); err != nil {
		return EntryRecord{}, fmt.Errorf("tfo: %w", err)
	}
	return EntryRecord{
		Path:          CString(h.Path[:]),
		Offset:        h.Offset,
		EncryptedSize: h.EncryptedSize,
		DecryptedSize: h.DecryptedSize,
		Unknown:       h.Unknown,
		Encrypted:     h.Encrypted != 0,
	}, nil
}
