package uc2

import (
	"log/slog"

	"github.com/meigma/uc2/internal/layout"
)

// PkgOption configures a Pkg.
type PkgOption func(*Pkg)

// WithTFO selects the TFO layout: a 16-byte header and 64-bit entry sizes.
// The layout is fixed for the lifetime of the Pkg.
func WithTFO(enabled bool) PkgOption {
	return func(p *Pkg) {
		if enabled {
			p.mode = layout.TFO
		} else {
			p.mode = layout.Standard
		}
	}
}

// WithEntryKey sets the provider key that decrypts the header and entry table.
func WithEntryKey(key string) PkgOption {
	return func(p *Pkg) {
		p.entryKey = key
	}
}

// WithDataKey sets the provider key that entry data keys are derived from.
func WithDataKey(key string) PkgOption {
	return func(p *Pkg) {
		p.dataKey = key
	}
}

// WithPkgLogger sets the logger for pkg and entry operations.
// If not set, logging is disabled.
func WithPkgLogger(logger *slog.Logger) PkgOption {
	return func(p *Pkg) {
		p.logger = logger
	}
}
