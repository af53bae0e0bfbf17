package testutil

import (
	"bytes"
	"encoding/binary"

	"github.com/ulikunitz/xz/lzma"
)

// TextureChunk is one chunk of a compressed texture fixture.
type TextureChunk struct {
	Data       []byte
	Compressed bool
}

// classicHeaderSize is the props, dictionary and size header that
// lzma.Writer emits ahead of the raw stream.
const classicHeaderSize = 13

// BuildTexture returns an LZMA texture holding chunks in order.
func BuildTexture(chunks []TextureChunk) ([]byte, error) {
	stored := make([][]byte, len(chunks))
	var original int
	for i, c := range chunks {
		original += len(c.Data)
		if !c.Compressed {
			stored[i] = c.Data
			continue
		}
		b, err := CompressValveLZMA(c.Data)
		if err != nil {
			return nil, err
		}
		stored[i] = b
	}

	var out bytes.Buffer
	out.Write([]byte{'C', 'O', '2', byte(len(chunks))})
	_ = binary.Write(&out, binary.LittleEndian, uint32(original)) //nolint:gosec // fixtures are small

	offset := 8 + 8*len(chunks)
	for i, c := range chunks {
		tag := uint32(offset) << 1 //nolint:gosec // fixtures are small
		if c.Compressed {
			tag |= 1
		}
		_ = binary.Write(&out, binary.LittleEndian, tag)
		_ = binary.Write(&out, binary.LittleEndian, uint32(len(stored[i]))) //nolint:gosec // fixtures are small
		offset += len(stored[i])
	}
	for _, s := range stored {
		out.Write(s)
	}
	return out.Bytes(), nil
}

// CompressValveLZMA compresses data into a chunk with the 17-byte "LZMA"
// header: id, actual size, compressed size and five property bytes.
func CompressValveLZMA(data []byte) ([]byte, error) {
	var classic bytes.Buffer
	w, err := lzma.WriterConfig{
		SizeInHeader: true,
		Size:         int64(len(data)),
		EOSMarker:    false,
	}.NewWriter(&classic)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	raw := classic.Bytes()
	var out bytes.Buffer
	out.WriteString("LZMA")
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(data)))                  //nolint:gosec // fixtures are small
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(raw)-classicHeaderSize)) //nolint:gosec // fixtures are small
	out.Write(raw[:5])
	out.Write(raw[classicHeaderSize:])
	return out.Bytes(), nil
}
