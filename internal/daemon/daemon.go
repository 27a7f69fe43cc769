package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"verdant/internal/aggregator"
	"verdant/internal/api"
	"verdant/internal/config"
	"verdant/internal/identification"
	"verdant/internal/keylock"
	"verdant/internal/logging"
	"verdant/internal/obs"
	"verdant/internal/resultcache"
	"verdant/internal/workerpool"
)

// Daemon coordinates the identification service, the background janitors, and
// the HTTP API, and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *aggregator.Service

	cache    *resultcache.Cache
	locks    *keylock.Store
	metrics  *obs.Metrics
	gatherer prometheus.Gatherer

	configPath string

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithCache attaches the result cache so the janitor sweeps it and status
// output reports entry counts. The daemon closes the cache on Close.
func WithCache(cache *resultcache.Cache) Option {
	return func(d *Daemon) { d.cache = cache }
}

// WithLocks attaches the lease store for janitor sweeps and status output.
// The daemon closes the store on Close.
func WithLocks(locks *keylock.Store) Option {
	return func(d *Daemon) { d.locks = locks }
}

// WithMetrics attaches the collector set and the gatherer backing /metrics.
func WithMetrics(metrics *obs.Metrics, gatherer prometheus.Gatherer) Option {
	return func(d *Daemon) {
		d.metrics = metrics
		d.gatherer = gatherer
	}
}

// WithConfigPath records where the loaded config came from for status output.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, service *aggregator.Service, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || service == nil {
		return nil, errors.New("daemon requires config and identification service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.DaemonLockFile()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, launches the janitors, and begins serving
// the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another verdant daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(d.ctx)
	d.group = group

	if j := newJanitor(d.cache, d.locks, d.metrics, d.logger, d.cfg.CacheSweepInterval()); j != nil {
		group.Go(func() error {
			j.run(gctx)
			return nil
		})
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.releaseStart()
		return fmt.Errorf("create api server: %w", err)
	}
	if srv != nil {
		if err := srv.start(d.ctx); err != nil {
			d.releaseStart()
			return err
		}
		d.api = srv
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("verdant daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// releaseStart unwinds a partially started daemon.
func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		_ = d.group.Wait()
		d.group = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	if d.group != nil {
		_ = d.group.Wait()
		d.group = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("verdant daemon stopped")
}

// Close releases resources held by the daemon, including the stores handed in
// through options.
func (d *Daemon) Close() error {
	d.Stop()
	if d.service != nil {
		d.service.Close()
	}
	var errs []error
	if d.cache != nil {
		errs = append(errs, d.cache.Close())
	}
	if d.locks != nil {
		errs = append(errs, d.locks.Close())
	}
	return errors.Join(errs...)
}

// APIAddr reports the bound API listen address. It is empty when the API is
// disabled or the daemon is stopped; with a ":0" bind it carries the real port.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Identify runs one aggregate identification through the service.
func (d *Daemon) Identify(ctx context.Context, content []byte, opts identification.Options) (identification.AggregatedResult, error) {
	if d.service == nil {
		return identification.AggregatedResult{}, errors.New("identification service unavailable")
	}
	return d.service.AggregateIdentify(ctx, content, opts)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ConfigPath:   d.configPath,
		CacheDBPath:  d.cfg.CacheDBPath(),
		LockDBPath:   d.cfg.LockDBPath(),
		LockFilePath: d.lockPath,
		Workers:      workerpool.ParseSize(d.cfg.Aggregator.Workers, workerpool.DefaultSize, workerpool.MaxSize),
		Providers:    api.FromBreakerSnapshots(d.service.ProviderHealth()),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}

	var entries int64
	if d.cache != nil {
		if count, err := d.cache.EntryCount(ctx); err == nil {
			entries = count
		}
	}
	status.Cache = api.FromCacheStats(d.cache != nil, entries, d.service.CacheStats())

	if d.locks != nil {
		if count, err := d.locks.ActiveCount(ctx); err == nil {
			status.ActiveLeases = count
		}
	}
	return status
}
