package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8002", cfg.Mediator.Addr)
	assert.Equal(t, ":8000", cfg.Provider.Addr)
	assert.Equal(t, 30*time.Second, cfg.Mediator.RequestTimeout)
	assert.Equal(t, "Saved_Alignments", cfg.Mediator.AlignmentDir)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"missing mediator addr", func(c *Config) { c.Mediator.Addr = "" }, "mediator.addr"},
		{"provider url without scheme", func(c *Config) { c.Mediator.ProviderURL = "127.0.0.1:8000" }, "mediator.provider_url"},
		{"ftp provider url", func(c *Config) { c.Mediator.ProviderURL = "ftp://host/" }, "scheme"},
		{"zero timeout", func(c *Config) { c.Mediator.RequestTimeout = 0 }, "request_timeout"},
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "" }, "provider.base_url"},
		{"watch without catalog", func(c *Config) { c.Provider.Watch = true }, "provider.watch"},
		{"no sample and no catalog", func(c *Config) { c.Provider.SampleSize = 0 }, "sample_size"},
		{"catalog replaces sample", func(c *Config) { c.Provider.SampleSize = 0; c.Provider.Catalog = "cottages.ttl" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mediator.Addr = ""
	cfg.Provider.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mediator.addr")
	assert.Contains(t, err.Error(), "provider.addr")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rdgmed.yaml")

	cfg := DefaultConfig()
	cfg.Mediator.RequestTimeout = 5 * time.Second
	cfg.Provider.Catalog = "cottages.ttl"
	cfg.Provider.Watch = true
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdgmed.yaml")
	content := "mediator:\n  provider_url: http://provider.test:9000\n  request_timeout: 2m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://provider.test:9000", cfg.Mediator.ProviderURL)
	assert.Equal(t, 2*time.Minute, cfg.Mediator.RequestTimeout)
	assert.Equal(t, ":8002", cfg.Mediator.Addr, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mediator: [unclosed"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{
		Log:      LogConfig{Level: "debug"},
		Provider: ProviderConfig{Catalog: "cottages.ttl", Watch: true},
	})

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "cottages.ttl", cfg.Provider.Catalog)
	assert.True(t, cfg.Provider.Watch)
	assert.Equal(t, ":8000", cfg.Provider.Addr)

	cfg.Merge(nil)
	assert.Equal(t, "debug", cfg.Log.Level)
}
