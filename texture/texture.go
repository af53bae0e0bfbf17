// Package texture decompresses LZMA compressed textures.
//
// A compressed texture starts with the signature "CO2", a chunk count and
// the size of the original file, followed by one (offset, size) pair per
// chunk. The low bit of the offset word marks chunks that hold an LZMA
// stream with a 17-byte "LZMA" header; other chunks are stored as is.
// Textures arrive already decrypted, typically as a pkg entry.
package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

const (
	headerSize      = 8
	chunkEntrySize  = 8
	lzmaHeaderSize  = 17
	lzmaPropsSize   = 5
	signatureByte   = 'C'
	signatureWord   = 0x324F
	lzmaChunkMarker = "LZMA"
)

// Sentinel errors.
var (
	// ErrInvalidHeader is returned for data without a texture header.
	ErrInvalidHeader = errors.New("texture: invalid header")

	// ErrSizeMismatch is returned when the output buffer or the decompressed
	// chunks do not match the original size.
	ErrSizeMismatch = errors.New("texture: size mismatch")

	// ErrCorrupt is returned for chunk tables or streams that do not fit.
	ErrCorrupt = errors.New("texture: corrupt data")
)

// HeaderSize returns the size of the fixed texture header.
func HeaderSize() uint64 {
	return headerSize
}

// IsLzmaTexture reports whether b starts with a texture header.
func IsLzmaTexture(b []byte) bool {
	if len(b) < headerSize {
		return false
	}
	return b[0] == signatureByte && binary.LittleEndian.Uint16(b[1:]) == signatureWord
}

// Texture is a compressed texture held in memory.
type Texture struct {
	buf          []byte
	chunks       int
	originalSize uint32
}

// New returns a Texture over b.
func New(b []byte) (*Texture, error) {
	if !IsLzmaTexture(b) {
		return nil, ErrInvalidHeader
	}
	return &Texture{
		buf:          b,
		chunks:       int(b[3]),
		originalSize: binary.LittleEndian.Uint32(b[4:]),
	}, nil
}

// OriginalSize returns the size of the decompressed texture.
func (t *Texture) OriginalSize() uint64 {
	return uint64(t.originalSize)
}

// ChunkCount returns the number of chunks.
func (t *Texture) ChunkCount() int {
	return t.chunks
}

// Decompress writes the original texture to out, which must be exactly
// OriginalSize bytes long.
func (t *Texture) Decompress(out []byte) error {
	if uint64(len(out)) != t.OriginalSize() {
		return fmt.Errorf("%w: output buffer is %d bytes, texture is %d", ErrSizeMismatch, len(out), t.originalSize)
	}
	tableEnd := headerSize + t.chunks*chunkEntrySize
	if tableEnd > len(t.buf) {
		return fmt.Errorf("%w: chunk table of %d entries", ErrCorrupt, t.chunks)
	}

	pos := 0
	for i := range t.chunks {
		entry := t.buf[headerSize+i*chunkEntrySize:]
		tag := binary.LittleEndian.Uint32(entry)
		stored := int(binary.LittleEndian.Uint32(entry[4:]))
		off := int(tag >> 1)
		if off > len(t.buf) {
			return fmt.Errorf("%w: chunk %d offset %d", ErrCorrupt, i, off)
		}

		var (
			n   int
			err error
		)
		if tag&1 == 1 {
			n, err = decodeChunk(t.buf[off:], out[pos:])
		} else {
			n, err = copyChunk(t.buf[off:], out[pos:], stored)
		}
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		pos += n
	}

	if pos != len(out) {
		return fmt.Errorf("%w: chunks hold %d bytes, texture is %d", ErrSizeMismatch, pos, len(out))
	}
	return nil
}

func copyChunk(src, dst []byte, size int) (int, error) {
	if size > len(src) || size > len(dst) {
		return 0, fmt.Errorf("%w: stored chunk of %d bytes", ErrCorrupt, size)
	}
	return copy(dst, src[:size]), nil
}

// decodeChunk decompresses one "LZMA" chunk into dst and returns the number
// of bytes written.
func decodeChunk(src, dst []byte) (int, error) {
	if len(src) < lzmaHeaderSize || string(src[:4]) != lzmaChunkMarker {
		return 0, fmt.Errorf("%w: missing LZMA chunk header", ErrCorrupt)
	}
	actual := int(binary.LittleEndian.Uint32(src[4:]))
	packed := int(binary.LittleEndian.Uint32(src[8:]))
	props := src[12:lzmaHeaderSize]
	if actual > len(dst) {
		return 0, fmt.Errorf("%w: chunk of %d bytes overflows the texture", ErrSizeMismatch, actual)
	}
	if packed > len(src)-lzmaHeaderSize {
		return 0, fmt.Errorf("%w: LZMA stream of %d bytes", ErrCorrupt, packed)
	}

	// The classic .lzma header is the same five property bytes followed by
	// the uncompressed size.
	var classic [lzmaPropsSize + 8]byte
	copy(classic[:], props)
	binary.LittleEndian.PutUint64(classic[lzmaPropsSize:], uint64(actual))

	r, err := lzma.NewReader(io.MultiReader(
		bytes.NewReader(classic[:]),
		bytes.NewReader(src[lzmaHeaderSize:lzmaHeaderSize+packed]),
	))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if _, err := io.ReadFull(r, dst[:actual]); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return actual, nil
}
