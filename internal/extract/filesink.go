package extract

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meigma/uc2/internal/pathutil"
)

// FileSink writes entries below a destination directory.
//
// By default, content is written to a temporary file in the same directory
// and renamed to the final path. Partially written files are never visible
// at the final path. Paths are resolved through os.Root, so entries cannot
// escape the destination.
type FileSink struct {
	destDir     string
	overwrite   bool
	directWrite bool
}

var _ Sink = (*FileSink)(nil)

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// NewFileSink creates a FileSink that writes to destDir, creating it if
// needed.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	s := &FileSink{destDir: destDir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ShouldProcess returns false if the file already exists and overwrite is
// disabled, or if the path is unsafe.
func (s *FileSink) ShouldProcess(path string) bool {
	rel, err := pathutil.Relative(path)
	if err != nil {
		return false
	}
	if s.overwrite {
		return true
	}
	_, err = os.Stat(filepath.Join(s.destDir, filepath.FromSlash(rel)))
	return errors.Is(err, fs.ErrNotExist)
}

// Put writes content to the entry's path below the destination.
func (s *FileSink) Put(path string, content []byte) error {
	rel, err := pathutil.Relative(path)
	if err != nil {
		return &fs.PathError{Op: "extract", Path: path, Err: err}
	}
	destRel := filepath.FromSlash(rel)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close() //nolint:errcheck // best-effort cleanup

	if err := root.MkdirAll(filepath.Dir(destRel), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	if s.directWrite {
		return writeDirect(root, destRel, content)
	}
	return writeAtomic(root, destRel, content)
}

// Close is a no-op; every Put completes its own file.
func (s *FileSink) Close() error {
	return nil
}

func writeDirect(root *os.Root, destRel string, content []byte) error {
	f, err := root.OpenFile(destRel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create file %s: %w", destRel, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()            //nolint:errcheck // best-effort cleanup
		_ = root.Remove(destRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", destRel, err)
	}
	if err := f.Close(); err != nil {
		_ = root.Remove(destRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close %s: %w", destRel, err)
	}
	return nil
}

func writeAtomic(root *os.Root, destRel string, content []byte) error {
	tmp, tmpRel, err := createTempFile(root, filepath.Dir(destRel), ".uc2-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()         //nolint:errcheck // best-effort cleanup
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", destRel, err)
	}
	if err := tmp.Close(); err != nil {
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := root.Rename(tmpRel, destRel); err != nil {
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", destRel, err)
	}
	return nil
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
