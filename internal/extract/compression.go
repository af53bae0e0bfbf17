// Package extract writes decrypted pkg entries to a directory or a tar
// archive.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the compression applied to a tar archive.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// CompressionForPath picks the compression matching the file extension of
// name: ".zst" or ".zstd" for zstd, ".lz4" for lz4, none otherwise.
func CompressionForPath(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// newWriter wraps w with the compressor for c. best trades speed for a
// smaller archive.
func newWriter(w io.Writer, c Compression, best bool) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		level := zstd.SpeedDefault
		if best {
			level = zstd.SpeedBestCompression
		}
		return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(level))
	case CompressionLZ4:
		level := lz4.Fast
		if best {
			level = lz4.Level9
		}
		zw := lz4.NewWriter(w)
		if err := zw.Apply(
			lz4.BlockChecksumOption(true),
			lz4.CompressionLevelOption(level),
		); err != nil {
			return nil, err
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("extract: unknown compression %d", c)
	}
}

// NewReader returns a reader that decompresses r according to c.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("extract: unknown compression %d", c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
