package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"verdant/internal/breaker"
	"verdant/internal/config"
	"verdant/internal/identification"
	"verdant/internal/logging"
	"verdant/internal/obs"
	"verdant/internal/resultcache"
	"verdant/internal/services"
	"verdant/internal/workerpool"
)

// cacheAPIVersion tags every cache key with the normalized result schema
// revision. Bump it when Suggestion or its nested types change shape so old
// entries stop matching instead of decoding into the wrong schema.
const cacheAPIVersion = "v1"

// Service coordinates parallel provider calls for one identification request
// and merges their answers. Construct with New; the zero value is not usable.
type Service struct {
	cfg       *config.Config
	providers []identification.Provider
	breakers  *breaker.Registry
	pool      *workerpool.Pool
	ownsPool  bool
	cache     *resultcache.Cache
	metrics   *obs.Metrics
	logger    *slog.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithCache enables result caching. Without it every request goes upstream.
func WithCache(cache *resultcache.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches the Prometheus collector set.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithPool substitutes a shared worker pool. Closing it stays with the owner.
func WithPool(pool *workerpool.Pool) Option {
	return func(s *Service) {
		if pool != nil {
			s.pool = pool
		}
	}
}

// New builds the aggregation service. Providers must be listed in configured
// priority order; the first is the primary provider for merging. Without
// WithPool the service sizes its own pool from cfg and closes it on Close.
func New(cfg *config.Config, providers []identification.Provider, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	seen := make(map[string]struct{}, len(providers))
	for _, provider := range providers {
		if provider == nil {
			return nil, errors.New("nil provider in roster")
		}
		id := strings.TrimSpace(provider.ID())
		if id == "" {
			return nil, errors.New("provider with empty id in roster")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate provider %q in roster", id)
		}
		seen[id] = struct{}{}
	}

	s := &Service{
		cfg:       cfg,
		providers: providers,
		logger:    logging.NewComponentLogger(logger, "aggregator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		size := workerpool.ParseSize(cfg.Aggregator.Workers, workerpool.DefaultSize, workerpool.MaxSize)
		s.pool = workerpool.New(size, workerpool.WithLogger(logger))
		s.ownsPool = true
	}
	s.breakers = breaker.NewRegistry(breaker.Config{
		FailMax:          cfg.Breaker.FailMax,
		ResetTimeout:     cfg.BreakerResetTimeout(),
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}, breaker.WithStateChange(s.onBreakerChange))

	// Touch every breaker up front so status and metrics surfaces list all
	// providers before the first request arrives.
	for _, provider := range providers {
		s.breakers.For(provider.ID())
		if s.metrics != nil {
			s.metrics.BreakerState.WithLabelValues(provider.ID()).Set(float64(breaker.StateClosed))
		}
	}
	return s, nil
}

// Close releases the worker pool when the service owns it. Injected pools,
// caches, and metrics belong to the caller.
func (s *Service) Close() {
	if s.ownsPool {
		s.pool.Close()
	}
}

// ProviderHealth reports per-provider circuit snapshots sorted by provider.
func (s *Service) ProviderHealth() []breaker.Snapshot {
	return s.breakers.Snapshots()
}

// CacheStats reports result cache counters, zero-valued when caching is off.
func (s *Service) CacheStats() resultcache.Stats {
	if s.cache == nil {
		return resultcache.Stats{}
	}
	return s.cache.Stats()
}

// AggregateIdentify fans content out to every provider and returns the merged
// ranking plus exactly one ProviderCallResult per provider in configured
// order. Provider failures, timeouts, and open circuits are captured in their
// result slots; the only error this returns is for unusable input.
func (s *Service) AggregateIdentify(ctx context.Context, content []byte, opts identification.Options) (identification.AggregatedResult, error) {
	if len(content) == 0 {
		return identification.AggregatedResult{}, services.Wrap(
			services.ErrValidation, "aggregator", "identify", "image content is required", nil)
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, s.logger)
	if s.metrics != nil {
		s.metrics.IdentifyRequests.Inc()
		s.metrics.IdentifyInFlight.Inc()
		defer s.metrics.IdentifyInFlight.Dec()
	}

	fingerprint := identification.Fingerprint(content)
	logger.Info("starting identification",
		logging.String("fingerprint", shortFingerprint(fingerprint)),
		logging.Int("content_bytes", len(content)),
		logging.Int("providers", len(s.providers)))

	results := make([]identification.ProviderCallResult, len(s.providers))
	var wg sync.WaitGroup
	for idx, provider := range s.providers {
		wg.Add(1)
		err := s.pool.Submit(ctx, func() {
			defer wg.Done()
			results[idx] = s.callProvider(ctx, provider, content, fingerprint, opts)
		})
		if err != nil {
			wg.Done()
			results[idx] = identification.ProviderCallResult{
				Provider:    provider.ID(),
				Status:      services.CallStatusFor(err),
				ErrorDetail: err.Error(),
			}
		}
	}
	wg.Wait()

	result := identification.AggregatedResult{
		Suggestions:     mergeRank(results, s.cfg.Aggregator.PrimaryLimit, s.cfg.Aggregator.SecondaryLimit),
		ProviderResults: results,
	}
	logger.Info("identification aggregated",
		logging.Int("suggestions", len(result.Suggestions)),
		logging.Int("provider_successes", result.SuccessCount()))
	return result, nil
}

// callProvider runs one provider call through cache, breaker, and timeout and
// always comes back with a filled result slot.
func (s *Service) callProvider(ctx context.Context, provider identification.Provider, content []byte, fingerprint string, opts identification.Options) identification.ProviderCallResult {
	providerID := provider.ID()
	ctx = services.WithProvider(ctx, providerID)
	logger := logging.WithContext(ctx, s.logger)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout())
	defer cancel()

	fetch := func(fetchCtx context.Context) ([]identification.Suggestion, error) {
		var fetched []identification.Suggestion
		err := s.breakers.For(providerID).Do(fetchCtx, func(callCtx context.Context) error {
			suggestions, callErr := provider.Identify(callCtx, content, opts)
			if callErr != nil {
				return callErr
			}
			fetched = suggestions
			return nil
		})
		if err != nil {
			return nil, err
		}
		return fetched, nil
	}

	start := time.Now()
	var (
		suggestions []identification.Suggestion
		fromCache   bool
		err         error
	)
	if s.cache != nil {
		key := identification.CacheKey(fingerprint, cacheAPIVersion, providerID, opts)
		suggestions, fromCache, err = s.cache.GetOrFetch(callCtx, key, s.cfg.CacheTTL(), fetch)
	} else {
		suggestions, err = fetch(callCtx)
	}
	latency := time.Since(start)

	status := services.CallStatusFor(err)
	result := identification.ProviderCallResult{
		Provider:  providerID,
		Status:    status,
		Latency:   latency,
		FromCache: fromCache,
	}
	if err != nil {
		result.ErrorDetail = err.Error()
	} else {
		result.Suggestions = suggestions
	}

	if s.metrics != nil {
		s.metrics.ProviderCalls.WithLabelValues(providerID, string(status)).Inc()
		if status != identification.CallStatusCircuitOpen {
			// Rejections never left the process; their near-zero latency
			// would only distort the call histogram.
			s.metrics.ProviderLatency.WithLabelValues(providerID).Observe(float64(latency.Milliseconds()))
		}
	}

	switch status {
	case identification.CallStatusSuccess:
		logger.Debug("provider call completed",
			logging.Int("suggestions", len(suggestions)),
			logging.Bool("from_cache", fromCache),
			logging.Duration("latency", latency))
	case identification.CallStatusCircuitOpen:
		logger.Debug("provider call rejected; circuit open")
	default:
		logger.Warn("provider call failed",
			logging.String("status", string(status)),
			logging.Duration("latency", latency),
			logging.Error(err))
	}
	return result
}

// onBreakerChange runs inside the breaker's lock; it only records the
// transition and must not call back into the breaker.
func (s *Service) onBreakerChange(name string, from, to breaker.State) {
	if s.metrics != nil {
		s.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		s.metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
	}
	attrs := logging.Args(
		logging.String(logging.FieldProvider, name),
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	)
	switch to {
	case breaker.StateOpen:
		s.logger.Warn("provider circuit opened; rejecting calls until reset timeout",
			append(attrs, logging.Alert("circuit_open"))...)
	case breaker.StateHalfOpen:
		s.logger.Info("provider circuit half-open; admitting trial call", attrs...)
	case breaker.StateClosed:
		s.logger.Info("provider circuit closed", attrs...)
	}
}

// shortFingerprint keeps log lines readable; fingerprints are sha256-sized.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) <= 12 {
		return fingerprint
	}
	return fingerprint[:12]
}
