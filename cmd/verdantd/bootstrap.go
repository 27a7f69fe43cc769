package main

import (
	"fmt"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"verdant/internal/aggregator"
	"verdant/internal/config"
	"verdant/internal/daemon"
	"verdant/internal/identification"
	"verdant/internal/identification/plantid"
	"verdant/internal/identification/plantnet"
	"verdant/internal/keylock"
	"verdant/internal/logging"
	"verdant/internal/obs"
	"verdant/internal/resultcache"
)

// buildProviders constructs a client for every enabled provider in configured
// priority order. The first entry is the primary provider for merging.
func buildProviders(cfg *config.Config, logger *slog.Logger) ([]identification.Provider, error) {
	var providers []identification.Provider
	for _, name := range cfg.EnabledOrder() {
		settings, _ := cfg.ProviderSettings(name)
		switch name {
		case plantid.ProviderID:
			client, err := plantid.New(settings.APIKey, settings.BaseURL, cfg.Providers.Language,
				plantid.WithLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("configure plant.id: %w", err)
			}
			providers = append(providers, client)
		case plantnet.ProviderID:
			client, err := plantnet.New(settings.APIKey, settings.BaseURL, cfg.Providers.Language,
				plantnet.WithLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("configure plantnet: %w", err)
			}
			providers = append(providers, client)
		default:
			return nil, fmt.Errorf("unknown provider %q in provider order", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	return providers, nil
}

// buildDaemon wires the stores, the aggregation service, and the daemon. The
// daemon takes ownership of the stores and closes them on Close.
func buildDaemon(cfg *config.Config, configPath string, logger *slog.Logger, metrics *obs.Metrics, registry *prometheus.Registry) (*daemon.Daemon, error) {
	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	locks, err := keylock.Open(cfg.LockDBPath(), keylock.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open lock store: %w", err)
	}
	logger.Debug("lock store ready", logging.String("path", locks.Path()))

	var cache *resultcache.Cache
	if cfg.Cache.Enabled {
		cache, err = resultcache.Open(cfg.CacheDBPath(),
			resultcache.WithLocker(locks),
			resultcache.WithLogger(logger),
			resultcache.WithLeaseTTL(cfg.LockLeaseTTL()),
			resultcache.WithWaitTimeout(cfg.LockWaitTimeout()),
			resultcache.WithRetryInterval(cfg.LockRetryInterval()),
			resultcache.WithEventHook(func(event resultcache.Event) {
				metrics.CacheEvents.WithLabelValues(string(event)).Inc()
			}),
		)
		if err != nil {
			_ = locks.Close()
			return nil, fmt.Errorf("open result cache: %w", err)
		}
	}

	svcOpts := []aggregator.Option{aggregator.WithMetrics(metrics)}
	if cache != nil {
		svcOpts = append(svcOpts, aggregator.WithCache(cache))
	}
	svc, err := aggregator.New(cfg, providers, logger, svcOpts...)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		_ = locks.Close()
		return nil, fmt.Errorf("create aggregation service: %w", err)
	}

	daemonOpts := []daemon.Option{
		daemon.WithLocks(locks),
		daemon.WithMetrics(metrics, registry),
		daemon.WithConfigPath(configPath),
	}
	if cache != nil {
		daemonOpts = append(daemonOpts, daemon.WithCache(cache))
	}
	d, err := daemon.New(cfg, svc, logger, daemonOpts...)
	if err != nil {
		svc.Close()
		if cache != nil {
			_ = cache.Close()
		}
		_ = locks.Close()
		return nil, err
	}
	return d, nil
}
