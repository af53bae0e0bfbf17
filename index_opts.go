package uc2

import "log/slog"

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithKeyCollection sets the key collection used to derive the index key.
func WithKeyCollection(keys *KeyCollection) IndexOption {
	return func(i *Index) {
		i.keys = keys
	}
}

// WithIndexLogger sets the logger for index operations.
// If not set, logging is disabled.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) {
		i.logger = logger
	}
}
