package uc2

import (
	_ "crypto/sha256" // registers digest.SHA256
	_ "crypto/sha512" // registers digest.SHA384 and digest.SHA512
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"
)

// EntryInfo describes one pkg entry and the digest of its plaintext.
type EntryInfo struct {
	Path          string
	Offset        uint64
	EncryptedSize uint64
	DecryptedSize uint64
	Encrypted     bool
	// Digest is empty when digests were disabled.
	Digest digest.Digest
}

// InspectResult contains metadata about the entries of a pkg.
type InspectResult struct {
	name    string
	hash    string
	tfo     bool
	entries []EntryInfo

	// Lazy computed stats
	statsOnce          sync.Once
	totalEncryptedSize uint64
	totalDecryptedSize uint64
	encryptedCount     int
}

// InspectOption configures an Inspect operation.
type InspectOption func(*inspectConfig)

type inspectConfig struct {
	algorithm digest.Algorithm
	digests   bool
}

// InspectWithAlgorithm sets the digest algorithm (default: sha256).
func InspectWithAlgorithm(alg digest.Algorithm) InspectOption {
	return func(c *inspectConfig) {
		c.algorithm = alg
	}
}

// InspectWithoutDigests lists entries without decrypting their data.
func InspectWithoutDigests() InspectOption {
	return func(c *inspectConfig) {
		c.digests = false
	}
}

// Inspect decrypts the header and entry table of p if needed and describes
// every entry. Unless digests are disabled, each entry is decrypted in full
// to compute the digest of its plaintext.
func Inspect(p *Pkg, opts ...InspectOption) (*InspectResult, error) {
	cfg := inspectConfig{algorithm: digest.SHA256, digests: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.digests && !cfg.algorithm.Available() {
		return nil, fmt.Errorf("%w: digest algorithm %q unavailable", ErrInvalidArgument, cfg.algorithm)
	}

	if err := p.DecryptHeader(); err != nil {
		return nil, err
	}
	if err := p.Parse(); err != nil {
		return nil, err
	}

	entries := p.Entries()
	r := &InspectResult{
		name:    p.Name(),
		hash:    p.Hash(),
		tfo:     p.TFO(),
		entries: make([]EntryInfo, 0, len(entries)),
	}
	for _, e := range entries {
		info := EntryInfo{
			Path:          e.Path(),
			Offset:        e.PkgFileOffset(),
			EncryptedSize: e.EncryptedSize(),
			DecryptedSize: e.DecryptedSize(),
			Encrypted:     e.IsEncrypted(),
		}
		if cfg.digests {
			content, err := e.DecryptFile(0)
			if err != nil {
				return nil, err
			}
			info.Digest = cfg.algorithm.FromBytes(content)
		}
		r.entries = append(r.entries, info)
	}
	return r, nil
}

// Name returns the pkg file name.
func (r *InspectResult) Name() string {
	return r.name
}

// Hash returns the unvalidated hash prefix of the pkg.
func (r *InspectResult) Hash() string {
	return r.hash
}

// TFO reports whether the pkg uses the TFO layout.
func (r *InspectResult) TFO() bool {
	return r.tfo
}

// Entries returns the entry descriptions in on-disk order.
func (r *InspectResult) Entries() []EntryInfo {
	return r.entries
}

// FileCount returns the number of entries.
func (r *InspectResult) FileCount() int {
	return len(r.entries)
}

// TotalEncryptedSize returns the sum of all stored entry sizes.
// This requires iterating all entries on first call; the result is cached.
func (r *InspectResult) TotalEncryptedSize() uint64 {
	r.computeStats()
	return r.totalEncryptedSize
}

// TotalDecryptedSize returns the sum of all plaintext entry sizes.
// This requires iterating all entries on first call; the result is cached.
func (r *InspectResult) TotalDecryptedSize() uint64 {
	r.computeStats()
	return r.totalDecryptedSize
}

// EncryptedCount returns the number of encrypted entries.
func (r *InspectResult) EncryptedCount() int {
	r.computeStats()
	return r.encryptedCount
}

// computeStats computes aggregate statistics by iterating all entries.
func (r *InspectResult) computeStats() {
	r.statsOnce.Do(func() {
		for _, e := range r.entries {
			r.totalEncryptedSize += e.EncryptedSize
			r.totalDecryptedSize += e.DecryptedSize
			if e.Encrypted {
				r.encryptedCount++
			}
		}
	})
}
