package testsupport

import (
	"testing"

	"verdant/internal/config"
	"verdant/internal/keylock"
	"verdant/internal/resultcache"
)

// MustOpenCache opens a resultcache.Cache for tests and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config, opts ...resultcache.Option) *resultcache.Cache {
	t.Helper()

	cache, err := resultcache.Open(cfg.CacheDBPath(), opts...)
	if err != nil {
		t.Fatalf("resultcache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return cache
}

// MustOpenLocks opens a keylock.Store for tests and registers cleanup.
func MustOpenLocks(t testing.TB, cfg *config.Config, opts ...keylock.Option) *keylock.Store {
	t.Helper()

	locks, err := keylock.Open(cfg.LockDBPath(), opts...)
	if err != nil {
		t.Fatalf("keylock.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = locks.Close()
	})
	return locks
}
