package resultcache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"verdant/internal/identification"
	"verdant/internal/keylock"
	"verdant/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the cache is disposable, so users delete the file to rebuild.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Event labels cache activity for the metrics hook.
type Event string

const (
	EventHit       Event = "hit"
	EventMiss      Event = "miss"
	EventStore     Event = "store"
	EventCorrupt   Event = "corrupt"
	EventContended Event = "contended"
	EventDegraded  Event = "degraded"
)

// Locker serializes fetches for one cache key across processes. Implemented
// by keylock.Store.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*keylock.Handle, bool, error)
	Release(ctx context.Context, handle *keylock.Handle) error
}

var _ Locker = (*keylock.Store)(nil)

// Stats is a point-in-time view of cache effectiveness counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Stores    uint64 `json:"stores"`
	Corrupt   uint64 `json:"corrupt"`
	Contended uint64 `json:"contended"`
	Degraded  uint64 `json:"degraded"`
}

// Cache persists normalized provider responses in SQLite with per-entry TTLs
// and guards fresh fetches with a leased lock so identical concurrent
// requests hit a provider once.
type Cache struct {
	db     *sql.DB
	path   string
	locker Locker
	logger *slog.Logger
	clock  func() time.Time

	leaseTTL      time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	stores    atomic.Uint64
	corrupt   atomic.Uint64
	contended atomic.Uint64
	degraded  atomic.Uint64

	onEvent func(Event)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLocker enables cross-process fetch serialization. Without a locker the
// cache still works but concurrent misses all fetch.
func WithLocker(locker Locker) Option {
	return func(c *Cache) { c.locker = locker }
}

// WithLogger attaches a logger for degrade and corruption events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "resultcache")
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLeaseTTL sets how long a fetch holds the per-key lease.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.leaseTTL = ttl
		}
	}
}

// WithWaitTimeout bounds how long a contended request waits for the lease
// holder to fill the cache before fetching itself.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.waitTimeout = timeout
		}
	}
}

// WithRetryInterval sets the poll interval used while waiting on a contended
// key.
func WithRetryInterval(interval time.Duration) Option {
	return func(c *Cache) {
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// WithEventHook registers a callback for metrics counters. The hook runs on
// the request path and must be cheap.
func WithEventHook(hook func(Event)) Option {
	return func(c *Cache) { c.onEvent = hook }
}

// Open initializes or connects to the cache database.
func Open(path string, opts ...Option) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cache database path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure cache db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	cache := &Cache{
		db:            db,
		path:          path,
		logger:        logging.NewNop(),
		clock:         time.Now,
		leaseTTL:      30 * time.Second,
		waitTimeout:   15 * time.Second,
		retryInterval: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cache)
	}

	if err := cache.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the backing database file.
func (c *Cache) Path() string { return c.path }

// Get returns the cached suggestions for key. Expired and undecodable entries
// read as misses; undecodable rows are deleted on sight so the next fetch
// rewrites them.
func (c *Cache) Get(ctx context.Context, key string) ([]identification.Suggestion, bool, error) {
	var (
		payload   string
		expiresNS int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT payload, expires_at_ns FROM entries WHERE key = ?", key,
	).Scan(&payload, &expiresNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	if expiresNS <= c.clock().UTC().UnixNano() {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ? AND expires_at_ns = ?", key, expiresNS)
		return nil, false, nil
	}

	var suggestions []identification.Suggestion
	if err := json.Unmarshal([]byte(payload), &suggestions); err != nil {
		c.corrupt.Add(1)
		c.event(EventCorrupt)
		c.logger.Warn("dropping undecodable cache entry",
			logging.String("key", abbreviateKey(key)),
			logging.Error(err))
		_, _ = c.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key)
		return nil, false, nil
	}
	return suggestions, true, nil
}

// Put stores suggestions under key with the supplied TTL. The write is a
// single-row upsert, so replacement is atomic per key.
func (c *Cache) Put(ctx context.Context, key string, suggestions []identification.Suggestion, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	now := c.clock().UTC()
	_, err = c.db.ExecContext(ctx, `
        INSERT INTO entries (key, payload, created_at_ns, ttl_ns, expires_at_ns)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            payload = excluded.payload,
            created_at_ns = excluded.created_at_ns,
            ttl_ns = excluded.ttl_ns,
            expires_at_ns = excluded.expires_at_ns`,
		key, string(payload), now.UnixNano(), int64(ttl), now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	c.stores.Add(1)
	c.event(EventStore)
	return nil
}

// SweepExpired deletes entries past their TTL and reports how many went.
func (c *Cache) SweepExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM entries WHERE expires_at_ns <= ?", c.clock().UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	reaped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return reaped, nil
}

// Clear removes every entry and reports how many were dropped.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM entries")
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	dropped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear rows affected: %w", err)
	}
	return dropped, nil
}

// EntryCount reports live (unexpired) entries.
func (c *Cache) EntryCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM entries WHERE expires_at_ns > ?", c.clock().UTC().UnixNano(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Stats returns the current effectiveness counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Stores:    c.stores.Load(),
		Corrupt:   c.corrupt.Load(),
		Contended: c.contended.Load(),
		Degraded:  c.degraded.Load(),
	}
}

func (c *Cache) event(event Event) {
	if c.onEvent != nil {
		c.onEvent(event)
	}
}

// abbreviateKey keeps log lines readable; full keys are sha256-sized.
func abbreviateKey(key string) string {
	if len(key) <= 16 {
		return key
	}
	return key[:16] + "..."
}

func (c *Cache) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	err = c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Cache) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
