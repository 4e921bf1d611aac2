// Package config provides configuration loading for the rdgmed services.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "rdgmed.yaml"

// Config represents the complete rdgmed configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Mediator MediatorConfig `yaml:"mediator"`
	Provider ProviderConfig `yaml:"provider"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Pretty switches to human readable console output
	Pretty bool `yaml:"pretty"`
}

// MediatorConfig configures the mediator service.
type MediatorConfig struct {
	Addr string `yaml:"addr"`
	// ProviderURL is the default provider base URL offered in forms
	ProviderURL string `yaml:"provider_url"`
	// ReferenceRDG is a Turtle file holding the mediator's own request
	// template for alignment (empty = built-in booking template)
	ReferenceRDG string `yaml:"reference_rdg"`
	// AlignmentDir receives saved alignment files
	AlignmentDir string `yaml:"alignment_dir"`
	// RequestTimeout bounds every provider round trip
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ProviderConfig configures the provider service.
type ProviderConfig struct {
	Addr string `yaml:"addr"`
	// Catalog is a Turtle file of offerings (empty = generated sample)
	Catalog string `yaml:"catalog"`
	// RDG overrides the published request template
	RDG string `yaml:"rdg"`
	// Watch reloads the catalog when the file changes
	Watch bool `yaml:"watch"`
	// BaseURL is the namespace for provider resources
	BaseURL string `yaml:"base_url"`
	// SampleSize and SampleSeed shape the generated catalog
	SampleSize int   `yaml:"sample_size"`
	SampleSeed int64 `yaml:"sample_seed"`
}

// DefaultConfig returns a Config with the standard local setup: provider on
// port 8000, mediator on 8002.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Mediator: MediatorConfig{
			Addr:           ":8002",
			ProviderURL:    "http://127.0.0.1:8000",
			AlignmentDir:   "Saved_Alignments",
			RequestTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Addr:       ":8000",
			BaseURL:    "http://127.0.0.1:8000/",
			SampleSize: 40,
			SampleSeed: 1,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}

	if c.Mediator.Addr == "" {
		errs = append(errs, errors.New("mediator.addr is required"))
	}
	if err := checkURL(c.Mediator.ProviderURL); err != nil {
		errs = append(errs, fmt.Errorf("mediator.provider_url: %w", err))
	}
	if c.Mediator.AlignmentDir == "" {
		errs = append(errs, errors.New("mediator.alignment_dir is required"))
	}
	if c.Mediator.RequestTimeout <= 0 {
		errs = append(errs, errors.New("mediator.request_timeout must be positive"))
	}

	if c.Provider.Addr == "" {
		errs = append(errs, errors.New("provider.addr is required"))
	}
	if err := checkURL(c.Provider.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("provider.base_url: %w", err))
	}
	if c.Provider.Catalog == "" && c.Provider.SampleSize <= 0 {
		errs = append(errs, errors.New("provider.sample_size must be positive without a catalog file"))
	}
	if c.Provider.Watch && c.Provider.Catalog == "" {
		errs = append(errs, errors.New("provider.watch needs provider.catalog"))
	}

	return errors.Join(errs...)
}

func checkURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load reads path if given, otherwise DefaultFile when present, otherwise
// returns the defaults. The result is validated.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	switch {
	case path != "":
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	default:
		if loaded, err := LoadFromFile(DefaultFile); err == nil {
			config = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one. Non-zero values in other take
// precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Pretty {
		c.Log.Pretty = true
	}

	if other.Mediator.Addr != "" {
		c.Mediator.Addr = other.Mediator.Addr
	}
	if other.Mediator.ProviderURL != "" {
		c.Mediator.ProviderURL = other.Mediator.ProviderURL
	}
	if other.Mediator.ReferenceRDG != "" {
		c.Mediator.ReferenceRDG = other.Mediator.ReferenceRDG
	}
	if other.Mediator.AlignmentDir != "" {
		c.Mediator.AlignmentDir = other.Mediator.AlignmentDir
	}
	if other.Mediator.RequestTimeout != 0 {
		c.Mediator.RequestTimeout = other.Mediator.RequestTimeout
	}

	if other.Provider.Addr != "" {
		c.Provider.Addr = other.Provider.Addr
	}
	if other.Provider.Catalog != "" {
		c.Provider.Catalog = other.Provider.Catalog
	}
	if other.Provider.RDG != "" {
		c.Provider.RDG = other.Provider.RDG
	}
	if other.Provider.Watch {
		c.Provider.Watch = true
	}
	if other.Provider.BaseURL != "" {
		c.Provider.BaseURL = other.Provider.BaseURL
	}
	if other.Provider.SampleSize != 0 {
		c.Provider.SampleSize = other.Provider.SampleSize
	}
	if other.Provider.SampleSeed != 0 {
		c.Provider.SampleSeed = other.Provider.SampleSeed
	}
}
