package preflight

import (
	"context"

	"verdant/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data directory (always checked; holds both SQLite stores)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	// Log directory (always checked)
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Providers (configuration only; no network traffic at startup)
	if settings, ok := cfg.ProviderSettings("plantid"); ok {
		results = append(results, CheckProviderSettings("Plant.id provider", settings))
	}
	if settings, ok := cfg.ProviderSettings("plantnet"); ok {
		results = append(results, CheckProviderSettings("PlantNet provider", settings))
	}

	// Result cache store (when caching is enabled)
	if cfg.Cache.Enabled {
		results = append(results, CheckCacheStore(cfg.CacheDBPath()))
	}

	// Lock store (always checked; degraded mode still needs the path writable)
	results = append(results, CheckLockStore(cfg.LockDBPath()))

	return results
}
