package extract

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/meigma/uc2/internal/pathutil"
)

// TarSink streams entries into a tar archive, optionally compressed.
type TarSink struct {
	mu      sync.Mutex
	comp    io.WriteCloser
	tw      *tar.Writer
	seen    map[string]struct{}
	modTime time.Time
	closed  bool
}

var _ Sink = (*TarSink)(nil)

// TarSinkOption configures a TarSink.
type TarSinkOption func(*tarConfig)

type tarConfig struct {
	best    bool
	modTime time.Time
}

// WithBestCompression selects the slowest, densest compression level.
func WithBestCompression(enabled bool) TarSinkOption {
	return func(c *tarConfig) {
		c.best = enabled
	}
}

// WithModTime sets the modification time recorded for every entry.
// By default, the Unix epoch is used so archives are reproducible.
func WithModTime(t time.Time) TarSinkOption {
	return func(c *tarConfig) {
		c.modTime = t
	}
}

// NewTarSink returns a TarSink writing to w. Closing the sink does not
// close w.
func NewTarSink(w io.Writer, c Compression, opts ...TarSinkOption) (*TarSink, error) {
	cfg := tarConfig{modTime: time.Unix(0, 0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	comp, err := newWriter(w, c, cfg.best)
	if err != nil {
		return nil, err
	}
	return &TarSink{
		comp:    comp,
		tw:      tar.NewWriter(comp),
		seen:    make(map[string]struct{}),
		modTime: cfg.modTime,
	}, nil
}

// ShouldProcess returns false for unsafe paths and paths already written.
func (s *TarSink) ShouldProcess(path string) bool {
	rel, err := pathutil.Relative(path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, dup := s.seen[rel]
	return !dup
}

// Put appends content as a regular file. A path that was already written is
// skipped, so concurrent callers that both passed ShouldProcess add it once.
func (s *TarSink) Put(path string, content []byte) error {
	rel, err := pathutil.Relative(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("extract: tar sink is closed")
	}
	if _, dup := s.seen[rel]; dup {
		return nil
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     rel,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  s.modTime,
		Format:   tar.FormatPAX,
	}
	if err := s.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", rel, err)
	}
	if _, err := s.tw.Write(content); err != nil {
		return fmt.Errorf("tar write %s: %w", rel, err)
	}
	s.seen[rel] = struct{}{}
	return nil
}

// Close finishes the tar stream and flushes the compressor.
func (s *TarSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.tw.Close(), s.comp.Close())
}
