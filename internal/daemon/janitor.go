package daemon

import (
	"context"
	"log/slog"
	"time"

	"verdant/internal/keylock"
	"verdant/internal/logging"
	"verdant/internal/obs"
	"verdant/internal/resultcache"
)

// janitor periodically removes expired cache rows and stale lock leases so
// neither store grows without bound between requests.
type janitor struct {
	cache    *resultcache.Cache
	locks    *keylock.Store
	metrics  *obs.Metrics
	logger   *slog.Logger
	interval time.Duration
}

func newJanitor(cache *resultcache.Cache, locks *keylock.Store, metrics *obs.Metrics, logger *slog.Logger, interval time.Duration) *janitor {
	if cache == nil && locks == nil {
		return nil
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &janitor{
		cache:    cache,
		locks:    locks,
		metrics:  metrics,
		logger:   logging.NewComponentLogger(logger, "janitor"),
		interval: interval,
	}
}

func (j *janitor) run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	// Run once immediately so a restart cleans up right away.
	j.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.sweepOnce(ctx)
		}
	}
}

func (j *janitor) sweepOnce(ctx context.Context) {
	start := time.Now()

	var resultsRemoved, leasesRemoved int64
	if j.cache != nil {
		removed, err := j.cache.SweepExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				j.logger.Warn("cache sweep failed", logging.Error(err))
			}
		} else {
			resultsRemoved = removed
			if removed > 0 && j.metrics != nil {
				j.metrics.SweepRemoved.WithLabelValues("results").Add(float64(removed))
			}
		}
	}
	if j.locks != nil {
		removed, err := j.locks.SweepExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				j.logger.Warn("lease sweep failed", logging.Error(err))
			}
		} else {
			leasesRemoved = removed
			if removed > 0 && j.metrics != nil {
				j.metrics.SweepRemoved.WithLabelValues("locks").Add(float64(removed))
			}
		}
	}

	if resultsRemoved > 0 || leasesRemoved > 0 {
		j.logger.Info("sweep completed",
			logging.Int64("results_removed", resultsRemoved),
			logging.Int64("leases_removed", leasesRemoved),
			logging.Duration("elapsed", time.Since(start)))
	}
}
