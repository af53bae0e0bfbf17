package uc2

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/meigma/uc2/internal/layout"
)

// supportedIndexVersion is the only index header version in use.
const supportedIndexVersion = 2

var lineSeparator = []byte("\r\n")

// IndexState is the progress of an Index through validation and parsing.
type IndexState uint8

const (
	// IndexUnvalidated is the state of a new Index.
	IndexUnvalidated IndexState = iota
	// IndexHeaderValid follows a successful ValidateHeader.
	IndexHeaderValid
	// IndexParsed follows a successful Parse.
	IndexParsed
)

func (s IndexState) String() string {
	switch s {
	case IndexUnvalidated:
		return "unvalidated"
	case IndexHeaderValid:
		return "header-valid"
	case IndexParsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// Index is an encrypted list of the pkg files of a provider.
//
// The first line of a correctly decrypted index is the index's own file
// name, which is the only check that the right key was used.
type Index struct {
	name   string
	buf    []byte
	keys   *KeyCollection
	logger *slog.Logger

	state  IndexState
	header layout.IndexHeader
	names  [][]byte
	size   uint64
}

// NewIndex returns an Index over buf. name is the index file name, which is
// both part of the key derivation and the expected first line.
func NewIndex(name string, buf []byte, opts ...IndexOption) *Index {
	i := &Index{name: name, buf: buf}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// log returns the logger, falling back to a discard logger if nil.
func (i *Index) log() *slog.Logger {
	if i.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return i.logger
}

// SetKeyCollection replaces the key collection used by Parse.
func (i *Index) SetKeyCollection(keys *KeyCollection) {
	i.keys = keys
}

// ValidateHeader checks the header version and the declared body size.
func (i *Index) ValidateHeader() error {
	if len(i.buf) < layout.IndexHeaderSize {
		return fmt.Errorf("%w: index of %d bytes has no header", ErrRange, len(i.buf))
	}
	hdr, err := layout.DecodeIndexHeader(i.buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRange, err)
	}
	if hdr.Version != supportedIndexVersion {
		return fmt.Errorf("%w: index version %d", ErrUnsupportedVersion, hdr.Version)
	}
	if uint64(len(i.buf)) != layout.IndexHeaderSize+uint64(hdr.BodySize) {
		return fmt.Errorf("%w: header declares %d body bytes, buffer holds %d",
			ErrSizeMismatch, hdr.BodySize, len(i.buf)-layout.IndexHeaderSize)
	}

	i.header = hdr
	if i.state < IndexHeaderValid {
		i.state = IndexHeaderValid
	}
	i.log().Debug("index header valid",
		"name", i.name,
		"cipher", hdr.Cipher,
		"key_flag", hdr.KeyFlag,
		"body_size", hdr.BodySize)
	return nil
}

// Parse decrypts the index body in place and splits it into file names. A
// body that does not decrypt to "\r\n" terminated printable names fails with
// ErrDecryptionFailed.
//
// It returns the header size plus the decrypted body length, which is
// shorter than the buffer by the removed padding. Once Parse has succeeded,
// later calls return the same length without decrypting again. A failed
// Parse leaves the body decrypted with the wrong key, so the buffer must be
// reloaded before trying another key collection.
func (i *Index) Parse() (uint64, error) {
	switch i.state {
	case IndexUnvalidated:
		return 0, ErrNotValidated
	case IndexParsed:
		return i.size, nil
	}
	if i.keys == nil {
		return 0, fmt.Errorf("%w: no key collection", ErrEmptyKey)
	}

	key, err := DeriveIndexKey(i.header.KeyFlag, i.name, i.keys)
	if err != nil {
		return 0, err
	}
	dec, err := newHeaderDecryptor(i.header.Cipher, key[:])
	if err != nil {
		return 0, err
	}

	body := i.buf[layout.IndexHeaderSize:]
	n, err := dec.DecryptInPlace(body)
	if err != nil {
		return 0, fmt.Errorf("%w: index body: %w", ErrDecryptionFailed, err)
	}

	names := splitLines(body[:n])
	if len(names) == 0 || string(names[0]) != i.name {
		i.names = nil
		return 0, fmt.Errorf("%w: first index line does not match %q", ErrDecryptionFailed, i.name)
	}

	if err := checkNames(body[:n], names); err != nil {
		i.names = nil
		return 0, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	i.names = names
	i.size = layout.IndexHeaderSize + uint64(n)
	i.state = IndexParsed
	i.log().Debug("index parsed",
		"name", i.name,
		"cipher", dec.Cipher().ID(),
		"files", len(names))
	return i.size, nil
}

// checkNames rejects a decrypted body that ends in an unterminated line or
// holds a name with control bytes or invalid UTF-8. A body decrypted from a
// tampered block fails this with overwhelming probability.
func checkNames(body []byte, names [][]byte) error {
	if !bytes.HasSuffix(body, lineSeparator) {
		return errors.New("index body does not end with a line terminator")
	}
	for n, name := range names {
		if !utf8.Valid(name) {
			return fmt.Errorf("index line %d is not valid UTF-8", n)
		}
		for _, c := range name {
			if c < 0x20 || c == 0x7f {
				return fmt.Errorf("index line %d holds control byte %#x", n, c)
			}
		}
	}
	return nil
}

// splitLines returns every "\r\n" terminated line of b. Text after the last
// terminator is not a line.
func splitLines(b []byte) [][]byte {
	var lines [][]byte
	for {
		end := bytes.Index(b, lineSeparator)
		if end < 0 {
			return lines
		}
		lines = append(lines, b[:end:end])
		b = b[end+len(lineSeparator):]
	}
}

// Filenames returns copies of the parsed file names, the index's own name
// first.
func (i *Index) Filenames() []string {
	out := make([]string, len(i.names))
	for n, b := range i.names {
		out[n] = string(b)
	}
	return out
}

// FilenameViews returns the parsed file names as views into the buffer.
func (i *Index) FilenameViews() [][]byte {
	return i.names
}

// Len returns the number of parsed file names.
func (i *Index) Len() int {
	return len(i.names)
}

// Name returns the index file name.
func (i *Index) Name() string {
	return i.name
}

// State returns the current state.
func (i *Index) State() IndexState {
	return i.state
}

// HeaderSize returns the size of the index header.
func (i *Index) HeaderSize() uint64 {
	return layout.IndexHeaderSize
}
