package uc2

import (
	"crypto/aes"
	"fmt"
	"log/slog"

	"github.com/meigma/uc2/internal/layout"
	"github.com/meigma/uc2/internal/pathutil"
	"github.com/meigma/uc2/internal/sizing"
)

// DataChunkSize is the span of entry data encrypted as one CBC chain. Each
// chunk starts again from a zero IV, so entry data must be decrypted chunk
// by chunk.
const DataChunkSize = 0x10000

// Entry is a file stored in a pkg.
//
// An Entry does not own its data. It shares the pkg buffer and decrypts its
// region of that buffer in place.
type Entry struct {
	path      string
	offset    uint64
	encSize   uint64
	decSize   uint64
	encrypted bool
	key       []byte
	buf       *buffer
	logger    *slog.Logger

	// gen is the buffer generation that done and resumeIV refer to.
	gen uint64
	// done counts leading bytes of the region already decrypted in place.
	done uint64
	// resumeIV is the last ciphertext block before done.
	resumeIV [aes.BlockSize]byte
}

func newEntry(r layout.EntryRecord, offset uint64, buf *buffer, dataKey string, logger *slog.Logger) (*Entry, error) {
	e := &Entry{
		path:      pathutil.EntryPath(r.Path),
		offset:    offset,
		encSize:   r.EncryptedSize,
		decSize:   r.DecryptedSize,
		encrypted: r.Encrypted,
		buf:       buf,
		logger:    logger,
		gen:       buf.gen,
	}
	if !e.encrypted {
		return e, nil
	}
	if e.decSize > e.encSize {
		return nil, fmt.Errorf("%w: %s decrypted size %d exceeds encrypted size %d",
			ErrInvalidArgument, e.path, e.decSize, e.encSize)
	}
	key, err := truncatedFileKey(pathutil.Base(e.path), dataKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, err)
	}
	e.key = key
	return e, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (e *Entry) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// DecryptFile decrypts the entry in place and returns its plaintext as a
// view into the pkg buffer.
//
// n == 0 decrypts the whole entry. Otherwise n is rounded up to the AES
// block size and capped at the decrypted size, so asking for 23 bytes
// returns 32. n larger than the decrypted size fails with
// ErrInvalidArgument. Bytes decrypted by an earlier call are not decrypted
// again.
func (e *Entry) DecryptFile(n uint64) ([]byte, error) {
	data := e.buf.data
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: entry %s has no data buffer", ErrInvalidArgument, e.path)
	}
	if n > e.decSize {
		return nil, fmt.Errorf("%w: %d bytes requested from %s of %d bytes",
			ErrInvalidArgument, n, e.path, e.decSize)
	}

	encN, outN := e.encSize, e.decSize
	if n != 0 {
		aligned, ok := sizing.RoundUp(n, aes.BlockSize)
		if !ok {
			return nil, fmt.Errorf("%w: request of %d bytes", ErrSizeOverflow, n)
		}
		encN = min(aligned, e.encSize)
		outN = min(aligned, e.decSize)
	}
	if !sizing.Fits(e.offset, max(encN, outN), len(data)) {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, pkg holds %d",
			ErrEntryExceedsContainer, e.path, max(encN, outN), e.offset, len(data))
	}

	// Fits guarantees offset and lengths fit in an int.
	region := data[e.offset : e.offset+max(encN, outN)]
	if !e.encrypted {
		return region[:outN:outN], nil
	}

	if e.gen != e.buf.gen {
		e.gen = e.buf.gen
		e.done = 0
	}
	if encN > e.done {
		from := e.done
		if err := e.decryptRange(region, encN); err != nil {
			return nil, err
		}
		e.log().Debug("entry decrypted",
			"path", e.path,
			"from", from,
			"to", encN,
			"chunks", chunkCount(from, encN))
	}
	return region[:outN:outN], nil
}

// decryptRange decrypts region[e.done:to] chunk by chunk, resuming the CBC
// chain of a partially decrypted chunk from resumeIV.
func (e *Entry) decryptRange(region []byte, to uint64) error {
	for e.done < to {
		off := e.done
		end := min((off/DataChunkSize+1)*DataChunkSize, to)
		seg := region[off:end]

		var iv []byte
		if off%DataChunkSize != 0 {
			iv = e.resumeIV[:]
		}
		dec, err := newAESDecryptor(e.key, iv)
		if err != nil {
			return fmt.Errorf("%s: %w", e.path, err)
		}

		var next [aes.BlockSize]byte
		if len(seg) >= aes.BlockSize {
			copy(next[:], seg[len(seg)-aes.BlockSize:])
		}
		if _, err := dec.DecryptInPlace(seg); err != nil {
			return fmt.Errorf("%s at %d: %w", e.path, off, err)
		}
		e.resumeIV = next
		e.done = end
	}
	return nil
}

func chunkCount(from, to uint64) uint64 {
	if to <= from {
		return 0
	}
	return (to-1)/DataChunkSize - from/DataChunkSize + 1
}

// Path returns the rooted, slash separated entry path.
func (e *Entry) Path() string {
	return e.path
}

// PkgFileOffset returns the absolute offset of the entry data in the pkg.
func (e *Entry) PkgFileOffset() uint64 {
	return e.offset
}

// EncryptedSize returns the stored size of the entry.
func (e *Entry) EncryptedSize() uint64 {
	return e.encSize
}

// DecryptedSize returns the plaintext size of the entry.
func (e *Entry) DecryptedSize() uint64 {
	return e.decSize
}

// IsEncrypted reports whether the entry data is encrypted.
func (e *Entry) IsEncrypted() bool {
	return e.encrypted
}
