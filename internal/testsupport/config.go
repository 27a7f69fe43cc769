package testsupport

import (
	"path/filepath"
	"testing"

	"verdant/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Provider credentials are filled with placeholders so Validate passes; tests
// that exercise real clients point base URLs at an httptest server instead.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Providers.PlantID.APIKey = "test-plantid-key"
	cfg.Providers.PlantNet.APIKey = "test-plantnet-key"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config validation: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}
	return &cfg
}

// WithProviderTimeout shortens the per-provider call budget for tests that
// exercise timeout paths.
func WithProviderTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Providers.TimeoutSeconds = seconds
	}
}

// WithCacheDisabled turns the result cache off.
func WithCacheDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cache.Enabled = false
	}
}
