// Package config loads provider profiles for the uc2 command.
//
// A provider profile holds the keys a game publisher uses for its archives.
// Profiles live in a single YAML file named by the --config flag or the
// UC2_CONFIG environment variable:
//
//	default_provider: nexon
//	providers:
//	  nexon:
//	    index_name: 1b87c6b551e518d11114ee21b7645a47.pkg
//	    index_keys:
//	      - 00112233445566778899aabbccddeeff
//	      - ...
//	    entry_key: "..."
//	    data_key: "..."
//	    tfo: false
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when no path is given.
const EnvVar = "UC2_CONFIG"

// ErrInvalidConfig is returned when a config file fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ErrUnknownProvider is returned when a requested provider is not defined.
var ErrUnknownProvider = errors.New("config: unknown provider")

// Config is the contents of a config file.
type Config struct {
	// DefaultProvider is used when no provider is named on the command line.
	DefaultProvider string `yaml:"default_provider"`

	// Providers maps a provider name to its keys.
	Providers map[string]Provider `yaml:"providers"`
}

// Provider holds the keys and layout of one publisher's archives.
type Provider struct {
	// IndexName is the file name of the provider's index file.
	IndexName string `yaml:"index_name"`

	// IndexKeys are the four hex encoded 16-byte keys of the key collection.
	IndexKeys []string `yaml:"index_keys"`

	// EntryKey decrypts pkg headers and entry tables.
	EntryKey string `yaml:"entry_key"`

	// DataKey derives the keys of pkg entries.
	DataKey string `yaml:"data_key"`

	// TFO selects the TFO pkg layout.
	TFO bool `yaml:"tfo"`
}

// Load reads the file at path, or the file named by UC2_CONFIG when path is
// empty. It returns an empty Config when neither is set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every provider profile.
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider %q is not defined", c.DefaultProvider))
		}
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := c.Providers[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("providers.%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (p Provider) validate() error {
	var errs []error
	if len(p.IndexKeys) != 0 && len(p.IndexKeys) != 4 {
		errs = append(errs, fmt.Errorf("index_keys must hold 4 keys, got %d", len(p.IndexKeys)))
	}
	for i, k := range p.IndexKeys {
		b, err := hex.DecodeString(k)
		if err != nil || len(b) != 16 {
			errs = append(errs, fmt.Errorf("index_keys[%d] must be 32 hex characters", i))
		}
	}
	return errors.Join(errs...)
}

// Provider returns the named provider, or the default provider when name is
// empty. An empty config yields an empty provider for an empty name, so
// every key can come from flags instead.
func (c *Config) Provider(name string) (Provider, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	if name == "" {
		return Provider{}, nil
	}
	p, ok := c.Providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}
