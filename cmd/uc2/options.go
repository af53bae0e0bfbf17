package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/meigma/uc2"
	"github.com/meigma/uc2/internal/config"
)

// options are the flags shared by the archive commands.
type options struct {
	configPath string
	provider   string
	indexKeys  []string
	indexName  string
	entryKey   string
	dataKey    string
	tfo        bool
	jobs       int
	verbose    bool

	log *slog.Logger
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "config file (default $"+config.EnvVar+")")
	fs.StringVarP(&o.provider, "provider", "p", "", "provider profile to take keys from")
	fs.StringSliceVar(&o.indexKeys, "index-keys", nil, "four comma separated hex keys of the index key collection")
	fs.StringVar(&o.indexName, "index-name", "", "file name used for index key derivation (default: base name of the file)")
	fs.StringVar(&o.entryKey, "entry-key", "", "pkg entry key")
	fs.StringVar(&o.dataKey, "data-key", "", "pkg data key")
	fs.BoolVar(&o.tfo, "tfo", false, "pkg files use the TFO layout")
	fs.IntVarP(&o.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of pkg files processed in parallel")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log debug output")
}

// resolve merges the provider profile under the flags. Flags set on the
// command line win over the profile.
func (o *options) resolve(fs *pflag.FlagSet) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	p, err := cfg.Provider(o.provider)
	if err != nil {
		return err
	}
	if !fs.Changed("index-keys") {
		o.indexKeys = p.IndexKeys
	}
	if !fs.Changed("index-name") {
		o.indexName = p.IndexName
	}
	if !fs.Changed("entry-key") {
		o.entryKey = p.EntryKey
	}
	if !fs.Changed("data-key") {
		o.dataKey = p.DataKey
	}
	if !fs.Changed("tfo") {
		o.tfo = p.TFO
	}
	if o.jobs < 1 {
		return fmt.Errorf("%w: --jobs must be at least 1", errUsage)
	}
	return nil
}

// logger returns the command's logger, creating it on first use.
func (o *options) logger(w io.Writer) *slog.Logger {
	if o.log == nil {
		level := slog.LevelInfo
		if o.verbose {
			level = slog.LevelDebug
		}
		o.log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return o.log
}

func (o *options) keyCollection() (*uc2.KeyCollection, error) {
	if len(o.indexKeys) == 0 {
		return nil, fmt.Errorf("%w: no index keys; set --index-keys or a provider", errUsage)
	}
	return uc2.ParseKeyCollection(o.indexKeys)
}

// parseFlags parses args into fs and handles --help. done reports that the
// command should return without running.
func parseFlags(fs *pflag.FlagSet, args []string, e *env, usage string) (done bool, err error) {
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: uc2 %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %w", errUsage, err)
	}
	return false, nil
}
