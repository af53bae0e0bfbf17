package uc2

import (
	"encoding/hex"
	"fmt"

	"github.com/meigma/uc2/internal/keyhash"
)

// KeyCollection is the fixed set of four 16-byte keys used to derive index
// and encrypted file keys.
type KeyCollection = keyhash.Collection

// ParseKeyCollection builds a KeyCollection from four hex encoded keys.
func ParseKeyCollection(hexKeys []string) (*KeyCollection, error) {
	if len(hexKeys) != keyhash.KeyCount {
		return nil, fmt.Errorf("%w: need %d keys, got %d", ErrInvalidArgument, keyhash.KeyCount, len(hexKeys))
	}
	var keys KeyCollection
	for i, s := range hexKeys {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %w", ErrInvalidArgument, i, err)
		}
		if len(b) != keyhash.KeySize {
			return nil, fmt.Errorf("%w: key %d is %d bytes, want %d", ErrInvalidArgument, i, len(b), keyhash.KeySize)
		}
		copy(keys[i][:], b)
	}
	return &keys, nil
}

// DeriveIndexKey returns the cipher key for an index or encrypted file.
//
// keys[flag/2] is hashed together with name; the parity of flag selects the
// operand order.
func DeriveIndexKey(flag uint8, name string, keys *KeyCollection) ([16]byte, error) {
	k, err := keyhash.IndexKey(flag, name, keys)
	if err != nil {
		return k, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return k, nil
}

// DeriveFileKey returns the 32 character hex key for a pkg or pkg entry.
// The first 16 characters form the AES-128 key.
func DeriveFileKey(name, dataKey string) (string, error) {
	k, err := keyhash.FileKey(name, dataKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return k, nil
}

func truncatedFileKey(name, dataKey string) ([]byte, error) {
	k, err := keyhash.TruncatedFileKey(name, dataKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return k, nil
}
