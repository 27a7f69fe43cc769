package main

import (
	"fmt"

	"verdant/internal/api"
	"verdant/internal/config"
	"verdant/internal/identification/plantid"
	"verdant/internal/identification/plantnet"
	"verdant/internal/preflight"
	"verdant/internal/workerpool"
)

// providerDisplayName maps a provider id to its human-facing label.
func providerDisplayName(id string) string {
	switch id {
	case plantid.ProviderID:
		return "Plant.id"
	case plantnet.ProviderID:
		return "Pl@ntNet"
	default:
		return id
	}
}

// breakerStatusKind grades a circuit state for display.
func breakerStatusKind(state string) statusKind {
	switch state {
	case "closed":
		return statusOK
	case "half_open":
		return statusWarn
	case "open":
		return statusError
	default:
		return statusInfo
	}
}

// breakerDetail renders one circuit snapshot as a status line message.
func breakerDetail(status api.BreakerStatus) string {
	switch status.State {
	case "closed":
		return fmt.Sprintf("closed (%d ok / %d failed)", status.TotalSuccesses, status.TotalFailures)
	case "open":
		if status.OpenedAt != "" {
			return fmt.Sprintf("open since %s (%d consecutive failures, %d rejected)",
				status.OpenedAt, status.ConsecutiveFailures, status.Rejected)
		}
		return fmt.Sprintf("open (%d consecutive failures, %d rejected)",
			status.ConsecutiveFailures, status.Rejected)
	case "half_open":
		return fmt.Sprintf("half_open (probing, %d rejected while open)", status.Rejected)
	default:
		return status.State
	}
}

// providerConfigKind grades a config-only provider check for display.
func providerConfigKind(result preflight.Result) statusKind {
	if !result.Passed || result.Detail == "Disabled" {
		return statusWarn
	}
	return statusOK
}

func cacheStatusKind(status api.CacheStatus) statusKind {
	switch {
	case !status.Enabled:
		return statusWarn
	case status.Degraded > 0:
		return statusWarn
	default:
		return statusOK
	}
}

func cacheStatusDetail(status api.CacheStatus) string {
	if !status.Enabled {
		return "Disabled"
	}
	return fmt.Sprintf("%d entries (%d hits / %d misses, %d stores)",
		status.Entries, status.Hits, status.Misses, status.Stores)
}

func probeKind(probe preflight.StoreProbe) statusKind {
	if probe.Available {
		return statusOK
	}
	return statusError
}

// offlineStatus builds the JSON status payload reported when the daemon is
// down. Store figures come from probing the databases directly; the cache
// store is left untouched when caching is disabled so the probe does not
// create it.
func offlineStatus(cfg *config.Config, configPath string) api.DaemonStatus {
	status := api.DaemonStatus{ConfigPath: configPath}
	if cfg == nil {
		return status
	}
	status.CacheDBPath = cfg.CacheDBPath()
	status.LockDBPath = cfg.LockDBPath()
	status.LockFilePath = cfg.DaemonLockFile()
	status.Workers = workerpool.ParseSize(cfg.Aggregator.Workers, workerpool.DefaultSize, workerpool.MaxSize)

	status.Cache = api.CacheStatus{Enabled: cfg.Cache.Enabled}
	if cfg.Cache.Enabled {
		status.Cache.Entries = preflight.ProbeCacheStore(cfg.CacheDBPath()).Entries
	}
	status.ActiveLeases = preflight.ProbeLockStore(cfg.LockDBPath()).Entries
	return status
}
