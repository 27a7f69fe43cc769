package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"verdant/internal/config"
	"verdant/internal/keylock"
	"verdant/internal/resultcache"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProviderSettings verifies a provider's configuration without touching
// the network. Disabled providers pass with a note so status output still
// lists them.
func CheckProviderSettings(name string, settings config.Provider) Result {
	if !settings.Enabled {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	if strings.TrimSpace(settings.BaseURL) == "" {
		return Result{Name: name, Detail: "base URL missing"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckCacheStore verifies the result cache database opens and its schema
// version matches this build.
func CheckCacheStore(path string) Result {
	const name = "Result cache"
	cache, err := resultcache.Open(path)
	if err != nil {
		return Result{Name: name, Detail: summarizeStoreError(path, err)}
	}
	_ = cache.Close()
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckLockStore verifies the lease database opens and its schema version
// matches this build.
func CheckLockStore(path string) Result {
	const name = "Lock store"
	locks, err := keylock.Open(path)
	if err != nil {
		return Result{Name: name, Detail: summarizeStoreError(path, err)}
	}
	_ = locks.Close()
	return Result{Name: name, Passed: true, Detail: path}
}

func summarizeStoreError(path string, err error) string {
	return fmt.Sprintf("%s (error: %v)", path, err)
}
