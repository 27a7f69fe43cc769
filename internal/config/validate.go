package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateAggregator(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProviders() error {
	for _, name := range c.Providers.Order {
		if _, ok := c.ProviderSettings(name); !ok {
			return fmt.Errorf("providers.order contains unknown provider %q", name)
		}
	}
	enabled := c.EnabledOrder()
	if len(enabled) == 0 {
		return errors.New("at least one provider must be enabled and listed in providers.order")
	}
	if c.Providers.PlantID.Enabled && strings.TrimSpace(c.Providers.PlantID.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/verdant/config.toml"
		}
		return fmt.Errorf("providers.plantid.api_key is required. Set PLANTID_API_KEY env var or edit %s (create with 'verdant config init')", defaultPath)
	}
	if c.Providers.PlantNet.Enabled && strings.TrimSpace(c.Providers.PlantNet.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/verdant/config.toml"
		}
		return fmt.Errorf("providers.plantnet.api_key is required. Set PLANTNET_API_KEY env var or edit %s (create with 'verdant config init')", defaultPath)
	}
	if c.Providers.TimeoutSeconds <= 0 {
		return errors.New("providers.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if err := ensurePositiveMap(map[string]int{
		"breaker.fail_max":              c.Breaker.FailMax,
		"breaker.reset_timeout_seconds": c.Breaker.ResetTimeoutSeconds,
		"breaker.success_threshold":     c.Breaker.SuccessThreshold,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"cache.ttl_hours":              c.Cache.TTLHours,
		"cache.sweep_interval_minutes": c.Cache.SweepIntervalMinutes,
	})
}

func (c *Config) validateLock() error {
	if err := ensurePositiveMap(map[string]int{
		"lock.lease_ttl_seconds":    c.Lock.LeaseTTLSeconds,
		"lock.wait_timeout_seconds": c.Lock.WaitTimeoutSeconds,
		"lock.retry_interval_ms":    c.Lock.RetryIntervalMS,
	}); err != nil {
		return err
	}
	if c.Lock.RetryIntervalMS >= c.Lock.WaitTimeoutSeconds*1000 {
		return errors.New("lock.retry_interval_ms must be smaller than lock.wait_timeout_seconds")
	}
	return nil
}

func (c *Config) validateAggregator() error {
	return ensurePositiveMap(map[string]int{
		"aggregator.primary_limit":   c.Aggregator.PrimaryLimit,
		"aggregator.secondary_limit": c.Aggregator.SecondaryLimit,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
