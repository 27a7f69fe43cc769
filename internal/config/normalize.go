package config

import (
	"fmt"
	"os"
	"strings"

	"verdant/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeBreaker()
	c.normalizeCache()
	c.normalizeLock()
	c.normalizeAggregator()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("VERDANT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeProviders() {
	if c.Providers.PlantID.APIKey == "" {
		if value, ok := os.LookupEnv("PLANTID_API_KEY"); ok {
			c.Providers.PlantID.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Providers.PlantNet.APIKey == "" {
		if value, ok := os.LookupEnv("PLANTNET_API_KEY"); ok {
			c.Providers.PlantNet.APIKey = strings.TrimSpace(value)
		}
	}
	c.Providers.PlantID.APIKey = strings.TrimSpace(c.Providers.PlantID.APIKey)
	c.Providers.PlantNet.APIKey = strings.TrimSpace(c.Providers.PlantNet.APIKey)
	c.Providers.PlantID.BaseURL = strings.TrimSpace(c.Providers.PlantID.BaseURL)
	if c.Providers.PlantID.BaseURL == "" {
		c.Providers.PlantID.BaseURL = defaultPlantIDBaseURL
	}
	c.Providers.PlantNet.BaseURL = strings.TrimSpace(c.Providers.PlantNet.BaseURL)
	if c.Providers.PlantNet.BaseURL == "" {
		c.Providers.PlantNet.BaseURL = defaultPlantNetBaseURL
	}
	if c.Providers.TimeoutSeconds <= 0 {
		c.Providers.TimeoutSeconds = defaultProviderTimeout
	}
	c.Providers.Language = language.Canonical(c.Providers.Language)
	if c.Providers.Language == "" {
		c.Providers.Language = defaultProviderLanguage
	}
	if len(c.Providers.Order) == 0 {
		c.Providers.Order = []string{defaultProviderOrderPrimary, defaultProviderOrderBackup}
		return
	}
	order := make([]string, 0, len(c.Providers.Order))
	seen := make(map[string]struct{}, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	if len(order) == 0 {
		order = []string{defaultProviderOrderPrimary, defaultProviderOrderBackup}
	}
	c.Providers.Order = order
}

func (c *Config) normalizeBreaker() {
	if c.Breaker.FailMax <= 0 {
		c.Breaker.FailMax = defaultBreakerFailMax
	}
	if c.Breaker.ResetTimeoutSeconds <= 0 {
		c.Breaker.ResetTimeoutSeconds = defaultBreakerResetSeconds
	}
	if c.Breaker.SuccessThreshold <= 0 {
		c.Breaker.SuccessThreshold = defaultBreakerSuccesses
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
	if c.Cache.SweepIntervalMinutes <= 0 {
		c.Cache.SweepIntervalMinutes = defaultCacheSweepMinutes
	}
}

func (c *Config) normalizeLock() {
	if c.Lock.LeaseTTLSeconds <= 0 {
		c.Lock.LeaseTTLSeconds = defaultLockLeaseSeconds
	}
	if c.Lock.WaitTimeoutSeconds <= 0 {
		c.Lock.WaitTimeoutSeconds = defaultLockWaitSeconds
	}
	if c.Lock.RetryIntervalMS <= 0 {
		c.Lock.RetryIntervalMS = defaultLockRetryMS
	}
}

func (c *Config) normalizeAggregator() {
	c.Aggregator.Workers = strings.TrimSpace(c.Aggregator.Workers)
	if c.Aggregator.Workers == "" {
		c.Aggregator.Workers = defaultIdentifyWorkers
	}
	if c.Aggregator.PrimaryLimit <= 0 {
		c.Aggregator.PrimaryLimit = defaultPrimaryLimit
	}
	if c.Aggregator.SecondaryLimit <= 0 {
		c.Aggregator.SecondaryLimit = defaultSecondaryLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
