package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Provider contains connection settings for a single identification provider.
type Provider struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Providers contains the provider roster and shared call settings.
type Providers struct {
	Order          []string `toml:"order"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Language       string   `toml:"language"`
	PlantID        Provider `toml:"plantid"`
	PlantNet       Provider `toml:"plantnet"`
}

// Breaker contains circuit breaker thresholds applied per provider.
type Breaker struct {
	FailMax             int `toml:"fail_max"`
	ResetTimeoutSeconds int `toml:"reset_timeout_seconds"`
	SuccessThreshold    int `toml:"success_threshold"`
}

// Cache contains configuration for the shared identification result cache.
type Cache struct {
	Enabled              bool `toml:"enabled"`
	TTLHours             int  `toml:"ttl_hours"`
	SweepIntervalMinutes int  `toml:"sweep_interval_minutes"`
}

// Lock contains configuration for the lease-based fill lock.
type Lock struct {
	LeaseTTLSeconds    int `toml:"lease_ttl_seconds"`
	WaitTimeoutSeconds int `toml:"wait_timeout_seconds"`
	RetryIntervalMS    int `toml:"retry_interval_ms"`
}

// Aggregator contains fan-out and merge settings for parallel provider calls.
//
// Workers is kept as a string so operator typos ("-5", "lots") degrade to the
// built-in default instead of failing config load. PrimaryLimit caps how many
// suggestions the primary provider seeds into the merged list; SecondaryLimit
// caps every later provider.
type Aggregator struct {
	Workers        string `toml:"workers"`
	PrimaryLimit   int    `toml:"primary_limit"`
	SecondaryLimit int    `toml:"secondary_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Verdant.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Providers: provider roster, priority order, credentials, call timeout
//   - Breaker: per-provider circuit breaker thresholds
//   - Cache: shared result cache policy and janitor cadence
//   - Lock: lease TTL and waiter behavior for coordinated cache fills
//   - Aggregator: worker pool sizing for parallel fan-out
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Providers  Providers  `toml:"providers"`
	Breaker    Breaker    `toml:"breaker"`
	Cache      Cache      `toml:"cache"`
	Lock       Lock       `toml:"lock"`
	Aggregator Aggregator `toml:"aggregator"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/verdant/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/verdant/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("verdant.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDBPath returns the SQLite database path backing the result cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.DataDir, "results.db")
}

// LockDBPath returns the SQLite database path backing the fill lock store.
func (c *Config) LockDBPath() string {
	return filepath.Join(c.Paths.DataDir, "locks.db")
}

// DaemonLockFile returns the flock path guarding single daemon instances.
func (c *Config) DaemonLockFile() string {
	return filepath.Join(c.Paths.DataDir, "verdantd.lock")
}

// ProviderTimeout returns the per-provider call budget.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// CacheTTL returns the lifetime applied to stored identification results.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// CacheSweepInterval returns the cadence for expired cache entry removal.
func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMinutes) * time.Minute
}

// LockLeaseTTL returns the lifetime of an acquired fill lease.
func (c *Config) LockLeaseTTL() time.Duration {
	return time.Duration(c.Lock.LeaseTTLSeconds) * time.Second
}

// LockWaitTimeout returns how long a contending caller polls for a fill.
func (c *Config) LockWaitTimeout() time.Duration {
	return time.Duration(c.Lock.WaitTimeoutSeconds) * time.Second
}

// LockRetryInterval returns the poll cadence while waiting on a fill.
func (c *Config) LockRetryInterval() time.Duration {
	return time.Duration(c.Lock.RetryIntervalMS) * time.Millisecond
}

// BreakerResetTimeout returns how long an open breaker stays closed to traffic.
func (c *Config) BreakerResetTimeout() time.Duration {
	return time.Duration(c.Breaker.ResetTimeoutSeconds) * time.Second
}

// ProviderSettings returns the connection settings for a provider by name.
func (c *Config) ProviderSettings(name string) (Provider, bool) {
	switch name {
	case "plantid":
		return c.Providers.PlantID, true
	case "plantnet":
		return c.Providers.PlantNet, true
	default:
		return Provider{}, false
	}
}

// EnabledOrder returns the configured provider order with disabled providers
// filtered out. The first entry is the primary provider for result merging.
func (c *Config) EnabledOrder() []string {
	out := make([]string, 0, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		settings, ok := c.ProviderSettings(name)
		if ok && settings.Enabled {
			out = append(out, name)
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
