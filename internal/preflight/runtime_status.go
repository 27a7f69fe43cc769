package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"verdant/internal/config"
	"verdant/internal/keylock"
	"verdant/internal/resultcache"
)

// CheckProviderFromConfig evaluates a provider's status from config alone.
// It never touches the network, so status output stays fast when the daemon
// is down.
func CheckProviderFromConfig(cfg *config.Config, key, name string) Result {
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	settings, ok := cfg.ProviderSettings(key)
	if !ok {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !settings.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	if strings.TrimSpace(settings.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

// StoreProbe reports the on-disk state of one SQLite store.
type StoreProbe struct {
	Available bool
	Path      string
	Entries   int64
}

// ProbeCacheStore inspects the result cache database without mutating it.
func ProbeCacheStore(path string) StoreProbe {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cache, err := resultcache.Open(path)
	if err != nil {
		return StoreProbe{Path: path}
	}
	defer func() { _ = cache.Close() }()

	count, err := cache.EntryCount(ctx)
	if err != nil {
		return StoreProbe{Available: true, Path: path}
	}
	return StoreProbe{Available: true, Path: path, Entries: count}
}

// ProbeLockStore inspects the lease database without mutating it.
func ProbeLockStore(path string) StoreProbe {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	locks, err := keylock.Open(path)
	if err != nil {
		return StoreProbe{Path: path}
	}
	defer func() { _ = locks.Close() }()

	count, err := locks.ActiveCount(ctx)
	if err != nil {
		return StoreProbe{Available: true, Path: path}
	}
	return StoreProbe{Available: true, Path: path, Entries: count}
}

// CacheDetail renders a display-friendly summary for status UIs.
func (p StoreProbe) CacheDetail() string {
	if !p.Available {
		return "Unavailable"
	}
	return fmt.Sprintf("%d cached result(s) at %s", p.Entries, p.Path)
}

// LockDetail renders a display-friendly summary for status UIs.
func (p StoreProbe) LockDetail() string {
	if !p.Available {
		return "Unavailable"
	}
	return fmt.Sprintf("%d active lease(s) at %s", p.Entries, p.Path)
}
