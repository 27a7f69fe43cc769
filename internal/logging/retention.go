package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneLogDir removes "*.log" files under dir that are older than
// retentionDays, skipping the named active file. A retentionDays value of 0
// disables pruning. Failures are logged and skipped so startup never stalls
// on a stubborn file.
func PruneLogDir(logger *slog.Logger, dir, active string, retentionDays int) {
	dir = strings.TrimSpace(dir)
	if dir == "" || retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == active {
			continue
		}
		if ok, err := filepath.Match("*.log", name); err != nil || !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed; file remains", String("path", path), Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("log pruned", String("path", path))
		}
	}
}
