package resultcache

import (
	"context"
	"time"

	"verdant/internal/identification"
	"verdant/internal/logging"
)

// FetchFunc produces fresh suggestions for a cache key. The aggregation layer
// wraps the provider call (and its circuit breaker) in one of these.
type FetchFunc func(ctx context.Context) ([]identification.Suggestion, error)

// GetOrFetch returns the cached suggestions for key or produces them with
// fetch. The returned bool reports whether the value came from the cache
// (directly, or filled by a concurrent holder while we waited).
//
// On a miss the per-key lease decides who fetches: the winner calls fetch and
// stores the result, everyone else polls the cache up to the wait timeout and
// falls back to fetching themselves if no fill appears. A failing lock
// backend downgrades to an unprotected fetch instead of failing the request.
// Fetch errors are returned as-is and never cached.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]identification.Suggestion, bool, error) {
	if suggestions, ok := c.lookup(ctx, key); ok {
		return suggestions, true, nil
	}
	c.misses.Add(1)
	c.event(EventMiss)

	if c.locker == nil {
		return c.fetchAndStore(ctx, key, ttl, fetch)
	}

	handle, acquired, err := c.locker.Acquire(ctx, key, c.leaseTTL)
	if err != nil {
		c.degraded.Add(1)
		c.event(EventDegraded)
		c.logger.Warn("lock backend unavailable; fetching without stampede protection",
			logging.String("key", abbreviateKey(key)),
			logging.Alert("lock_degraded"),
			logging.Error(err))
		return c.fetchAndStore(ctx, key, ttl, fetch)
	}

	if acquired {
		defer func() {
			// Release even when the caller's context is already gone;
			// otherwise every cancelled request leaks a lease for one TTL.
			if releaseErr := c.locker.Release(context.WithoutCancel(ctx), handle); releaseErr != nil {
				c.logger.Warn("lease release failed",
					logging.String("key", abbreviateKey(key)),
					logging.Error(releaseErr))
			}
		}()
		// The previous holder may have landed its fill between our miss and
		// our acquire; don't repeat its work.
		if suggestions, ok := c.lookup(ctx, key); ok {
			return suggestions, true, nil
		}
		return c.fetchAndStore(ctx, key, ttl, fetch)
	}

	// Another request holds the lease. Wait for its fill rather than
	// duplicating the provider call.
	c.contended.Add(1)
	c.event(EventContended)
	if suggestions, ok := c.waitForFill(ctx, key); ok {
		return suggestions, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	// The holder died or is slower than the wait budget. Fetches are
	// idempotent, so duplicated work beats failing the request.
	c.logger.Debug("lease holder did not fill cache in time; fetching directly",
		logging.String("key", abbreviateKey(key)))
	return c.fetchAndStore(ctx, key, ttl, fetch)
}

// lookup is Get with hit accounting and backend errors downgraded to misses.
func (c *Cache) lookup(ctx context.Context, key string) ([]identification.Suggestion, bool) {
	suggestions, ok, err := c.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed; treating as miss",
			logging.String("key", abbreviateKey(key)),
			logging.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.hits.Add(1)
	c.event(EventHit)
	return suggestions, true
}

func (c *Cache) fetchAndStore(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]identification.Suggestion, bool, error) {
	suggestions, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	if putErr := c.Put(ctx, key, suggestions, ttl); putErr != nil {
		// The caller still gets the result; only future requests pay.
		c.logger.Warn("cache store failed",
			logging.String("key", abbreviateKey(key)),
			logging.Error(putErr))
	}
	return suggestions, false, nil
}

func (c *Cache) waitForFill(ctx context.Context, key string) ([]identification.Suggestion, bool) {
	deadline := time.Now().Add(c.waitTimeout)
	ticker := time.NewTicker(c.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
			if suggestions, ok := c.lookup(ctx, key); ok {
				return suggestions, true
			}
			if time.Now().After(deadline) {
				return nil, false
			}
		}
	}
}
