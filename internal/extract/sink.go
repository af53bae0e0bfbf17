package extract

// Sink receives decrypted entry content.
//
// Implementations must be safe for concurrent use: entries of different pkg
// files may be written from several goroutines at once.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped, for
	// example because the file already exists.
	ShouldProcess(path string) bool

	// Put stores content under the rooted, slash separated entry path.
	// Implementations must not retain content after Put returns.
	Put(path string, content []byte) error

	// Close flushes and releases the sink.
	Close() error
}
