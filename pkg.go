package uc2

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"

	"github.com/meigma/uc2/internal/decryptor"
	"github.com/meigma/uc2/internal/layout"
	"github.com/meigma/uc2/internal/sizing"
)

// buffer is the data buffer shared by a Pkg and its entries. gen changes
// whenever the buffer is replaced.
type buffer struct {
	data []byte
	gen  uint64
}

// Pkg is a container of individually encrypted entries.
//
// A Pkg moves from constructed to header decrypted (DecryptHeader) to
// parsed (Parse). The header carries no checksum: a zero sentinel field is
// the only sign that it was decrypted with the right key.
type Pkg struct {
	name     string
	mode     layout.Mode
	layout   layout.Layout
	buf      *buffer
	entryKey string
	dataKey  string
	logger   *slog.Logger

	hash    string
	entries []*Entry
	// records counts entry records already decrypted in place.
	records int
	parsed  bool
}

// NewPkg returns a Pkg over buf. name is the pkg file name, used to derive
// the header key.
func NewPkg(name string, buf []byte, opts ...PkgOption) (*Pkg, error) {
	p := &Pkg{name: name, buf: &buffer{data: buf}}
	for _, opt := range opts {
		opt(p)
	}
	p.layout = layout.For(p.mode)

	if name == "" {
		return nil, fmt.Errorf("%w: pkg name cannot be empty", ErrInvalidArgument)
	}
	if full := layout.FullHeaderSize(p.mode); len(buf) < full {
		return nil, fmt.Errorf("%w: pkg of %d bytes is smaller than its %d byte header", ErrRange, len(buf), full)
	}
	return p, nil
}

// PkgHeaderSize returns the size of the hash prefix plus the pkg header for
// the selected layout.
func PkgHeaderSize(tfo bool) uint64 {
	if tfo {
		return uint64(layout.FullHeaderSize(layout.TFO))
	}
	return uint64(layout.FullHeaderSize(layout.Standard))
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Pkg) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// header returns the encrypted header region that follows the hash prefix,
// or nil if the buffer is too small to hold it.
func (p *Pkg) header() []byte {
	full := layout.FullHeaderSize(p.mode)
	if len(p.buf.data) < full {
		return nil
	}
	return p.buf.data[layout.HashPrefixSize:full]
}

// HeaderDecrypted reports whether the header sentinel reads zero.
func (p *Pkg) HeaderDecrypted() bool {
	hdr := p.header()
	return hdr != nil && p.layout.Sentinel(hdr) == 0
}

// DecryptHeader decrypts the pkg header in place.
//
// It is a no-op when the header is already decrypted. The header is
// decrypted into scratch space first and only written back when the
// sentinel checks out, so a wrong entry key leaves the buffer untouched and
// the call may be retried after SetEntryKey.
func (p *Pkg) DecryptHeader() error {
	if len(p.buf.data) == 0 {
		return fmt.Errorf("%w: pkg %s has no data buffer", ErrInvalidArgument, p.name)
	}
	if p.dataKey == "" {
		return fmt.Errorf("%w: data key", ErrEmptyKey)
	}
	if p.entryKey == "" {
		return fmt.Errorf("%w: entry key", ErrEmptyKey)
	}
	hdr := p.header()
	if hdr == nil {
		return fmt.Errorf("%w: pkg of %d bytes has no header", ErrRange, len(p.buf.data))
	}
	if p.layout.Sentinel(hdr) == 0 {
		return nil
	}

	dec, err := p.headerDecryptor()
	if err != nil {
		return err
	}
	scratch := bytes.Clone(hdr)
	if _, err := dec.DecryptInPlace(scratch); err != nil {
		return fmt.Errorf("%w: pkg header: %w", ErrDecryptionFailed, err)
	}
	if p.layout.Sentinel(scratch) != 0 {
		return fmt.Errorf("%w: pkg %s header sentinel is not zero", ErrDecryptionFailed, p.name)
	}
	copy(hdr, scratch)

	p.log().Debug("pkg header decrypted",
		"name", p.name,
		"mode", p.mode,
		"entries", p.layout.EntryCount(hdr))
	return nil
}

// Parse decrypts the entry table in place and builds the entries.
//
// Parse is a no-op once it has succeeded. Every record is decrypted exactly
// once, so a Parse that failed part way can be retried.
func (p *Pkg) Parse() error {
	if p.parsed {
		return nil
	}
	if len(p.buf.data) == 0 {
		return fmt.Errorf("%w: pkg %s has no data buffer", ErrInvalidArgument, p.name)
	}
	if !p.HeaderDecrypted() {
		return fmt.Errorf("%w: cannot parse %s", ErrHeaderEncrypted, p.name)
	}

	tableStart := uint64(layout.FullHeaderSize(p.mode))
	dataStart, err := p.FullHeaderSize()
	if err != nil {
		return err
	}
	if dataStart > uint64(len(p.buf.data)) {
		return fmt.Errorf("%w: entry table ends at %d, pkg holds %d bytes", ErrRange, dataStart, len(p.buf.data))
	}

	count := int(p.layout.EntryCount(p.header()))
	recSize := p.layout.EntryHeaderSize()
	data := p.buf.data
	p.hash = layout.CString(data[:layout.HashPrefixSize])

	for i := len(p.entries); i < count; i++ {
		start := int(tableStart) + i*recSize
		rec := data[start : start+recSize]
		if i >= p.records {
			if err := p.decryptRecord(rec); err != nil {
				return fmt.Errorf("entry record %d: %w", i, err)
			}
			p.records = i + 1
		}

		r, err := p.layout.DecodeEntry(rec)
		if err != nil {
			return fmt.Errorf("%w: entry record %d: %w", ErrRange, i, err)
		}
		offset, ok := sizing.AddUint64(dataStart, r.Offset)
		if !ok {
			return fmt.Errorf("%w: entry %d offset", ErrSizeOverflow, i)
		}
		e, err := newEntry(r, offset, p.buf, p.dataKey, p.logger)
		if err != nil {
			return fmt.Errorf("entry record %d: %w", i, err)
		}
		p.entries = append(p.entries, e)
	}

	p.parsed = true
	p.log().Debug("pkg parsed",
		"name", p.name,
		"mode", p.mode,
		"entries", len(p.entries),
		"data_start", dataStart)
	return nil
}

func (p *Pkg) decryptRecord(rec []byte) error {
	if p.entryKey == "" {
		return fmt.Errorf("%w: entry key", ErrEmptyKey)
	}
	dec, err := p.headerDecryptor()
	if err != nil {
		return err
	}
	if _, err := dec.DecryptInPlace(rec); err != nil {
		return err
	}
	return nil
}

func (p *Pkg) headerDecryptor() (*decryptor.Decryptor, error) {
	key, err := truncatedFileKey(p.name, p.entryKey)
	if err != nil {
		return nil, err
	}
	return newAESDecryptor(key, nil)
}

// FullHeaderSize returns the size of the hash prefix, the header and the
// entry table, which is where entry data starts.
func (p *Pkg) FullHeaderSize() (uint64, error) {
	hdr := p.header()
	if hdr == nil {
		return 0, fmt.Errorf("%w: pkg of %d bytes has no header", ErrRange, len(p.buf.data))
	}
	if p.layout.Sentinel(hdr) != 0 {
		return 0, fmt.Errorf("%w: full header size of %s", ErrHeaderEncrypted, p.name)
	}
	count := uint64(p.layout.EntryCount(hdr))
	return uint64(layout.FullHeaderSize(p.mode)) + count*uint64(p.layout.EntryHeaderSize()), nil
}

// HeaderSize returns the size of the hash prefix plus the header.
func (p *Pkg) HeaderSize() uint64 {
	return PkgHeaderSize(p.mode == layout.TFO)
}

// Name returns the pkg file name.
func (p *Pkg) Name() string {
	return p.name
}

// TFO reports whether the pkg uses the TFO layout.
func (p *Pkg) TFO() bool {
	return p.mode == layout.TFO
}

// Hash returns the text of the unencrypted 33-byte prefix, available after
// Parse. The prefix is never validated.
func (p *Pkg) Hash() string {
	return p.hash
}

// Entries returns the parsed entries in on-disk order.
func (p *Pkg) Entries() []*Entry {
	return slices.Clone(p.entries)
}

// Entry returns the entry with the given rooted path.
func (p *Pkg) Entry(path string) (*Entry, bool) {
	for _, e := range p.entries {
		if e.path == path {
			return e, true
		}
	}
	return nil, false
}

// SetEntryKey replaces the entry key.
func (p *Pkg) SetEntryKey(key string) {
	p.entryKey = key
}

// SetDataKey replaces the data key. Entries that were already parsed keep
// the keys they were built with.
func (p *Pkg) SetDataKey(key string) {
	p.dataKey = key
}

// SetDataBuffer replaces the pkg buffer for the pkg and every entry.
//
// Slices returned by earlier DecryptFile calls keep pointing at the old
// buffer. Entries treat the new buffer as fully encrypted.
func (p *Pkg) SetDataBuffer(buf []byte) {
	p.buf.data = buf
	p.buf.gen++
	if !p.parsed {
		p.entries = nil
		p.records = 0
	}
	p.log().Debug("pkg data buffer replaced", "name", p.name, "size", len(buf), "generation", p.buf.gen)
}

// ReleaseDataBuffer drops the reference to the pkg buffer.
func (p *Pkg) ReleaseDataBuffer() {
	p.SetDataBuffer(nil)
}
