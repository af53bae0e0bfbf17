// Package keyhash derives cipher keys for index, encrypted and pkg files.
//
// Both derivations are MD5 based. They exist for format compatibility and
// provide no cryptographic strength.
package keyhash

import (
	"crypto/md5" //nolint:gosec // format compatibility, not a security boundary
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeyCount is the number of keys in a collection.
	KeyCount = 4

	// KeySize is the length of each collection key.
	KeySize = 16

	// TruncatedFileKeyLen is the number of hex characters used as an AES-128 key.
	TruncatedFileKeyLen = 16

	// indexKeyVersion is hashed ahead of every index key.
	indexKeyVersion uint32 = 2
)

// ErrInvalidArgument is returned for empty names and out of range key flags.
var ErrInvalidArgument = errors.New("keyhash: invalid argument")

// Collection is a fixed set of four 16-byte master keys.
type Collection [KeyCount][KeySize]byte

// IndexKey derives the 16-byte key for an index or encrypted file.
//
// The key is MD5(le32(2) || a || b) where key = keys[flag/2] and (a, b) is
// (key, name) for odd flags and (name, key) for even ones. An empty name is
// left out of the digest.
func IndexKey(flag uint8, name string, keys *Collection) ([16]byte, error) {
	if keys == nil {
		return [16]byte{}, fmt.Errorf("%w: nil key collection", ErrInvalidArgument)
	}
	slot := int(flag / 2)
	if slot >= KeyCount {
		return [16]byte{}, fmt.Errorf("%w: key flag %d selects slot %d", ErrInvalidArgument, flag, slot)
	}
	key := keys[slot][:]

	h := md5.New() //nolint:gosec // format compatibility
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], indexKeyVersion)
	_, _ = h.Write(version[:])

	if flag%2 == 1 {
		_, _ = h.Write(key)
		_, _ = h.Write([]byte(name))
	} else {
		_, _ = h.Write([]byte(name))
		_, _ = h.Write(key)
	}

	var out [16]byte
	h.Sum(out[:0])
	return out, nil
}

// FileKey returns the lowercase hex MD5 of dataKey followed by name.
func FileKey(name, dataKey string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	}
	h := md5.New() //nolint:gosec // format compatibility
	_, _ = h.Write([]byte(dataKey))
	_, _ = h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TruncatedFileKey returns the first 16 characters of FileKey, the form used
// directly as an AES-128 key.
func TruncatedFileKey(name, dataKey string) ([]byte, error) {
	key, err := FileKey(name, dataKey)
	if err != nil {
		return nil, err
	}
	return []byte(key[:TruncatedFileKeyLen]), nil
}
