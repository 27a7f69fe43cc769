package keylock

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"verdant/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users delete the lock database to adopt the new schema.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Handle identifies one held lease. Owners are random per acquisition, so a
// handle can only release the exact lease it acquired.
type Handle struct {
	Key        string
	Owner      string
	Generation int64
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Store manages leased per-key locks backed by SQLite. Because the database
// file is shared, the lease serializes duplicate work across process
// instances, not just goroutines.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger for takeover and sweep events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "keylock")
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open initializes or connects to the lock database.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("lock database path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure lock db directory: %w", err)
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

	store := &Store{
		db:     db,
		path:   path,
		logger: logging.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the backing database file.
func (s *Store) Path() string { return s.path }

// Acquire attempts to take the lease for key with the given TTL. It returns
// (handle, true, nil) on success and (nil, false, nil) when another holder has
// a live lease. Expired leases are taken over in the same statement, so a
// crashed holder delays waiters by at most one TTL.
func (s *Store) Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errors.New("lock key required")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lease ttl must be positive")
	}

	now := s.clock().UTC()
	owner := uuid.NewString()

	// The upsert is the atomic decision point: it wins only when the row is
	// absent or the existing lease has expired.
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO leases (key, owner, generation, acquired_at_ns, expires_at_ns)
        VALUES (?, ?, 1, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            owner = excluded.owner,
            generation = leases.generation + 1,
            acquired_at_ns = excluded.acquired_at_ns,
            expires_at_ns = excluded.expires_at_ns
        WHERE leases.expires_at_ns <= excluded.acquired_at_ns`,
		key, owner, now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease: %w", err)
	}

	var (
		gotOwner   string
		generation int64
		acquiredNS int64
		expiresNS  int64
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT owner, generation, acquired_at_ns, expires_at_ns FROM leases WHERE key = ?", key,
	).Scan(&gotOwner, &generation, &acquiredNS, &expiresNS)
	if err != nil {
		return nil, false, fmt.Errorf("verify lease: %w", err)
	}

	if gotOwner != owner {
		return nil, false, nil
	}

	if generation > 1 {
		s.logger.Debug("lease taken over from expired holder",
			logging.String("key", key),
			logging.Int64("generation", generation))
	}

	return &Handle{
		Key:        key,
		Owner:      owner,
		Generation: generation,
		AcquiredAt: time.Unix(0, acquiredNS).UTC(),
		ExpiresAt:  time.Unix(0, expiresNS).UTC(),
	}, true, nil
}

// Release frees the lease if the handle still owns it. Losing the row to an
// expired takeover is not an error; the lease already moved on.
func (s *Store) Release(ctx context.Context, handle *Handle) error {
	if handle == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM leases WHERE key = ? AND owner = ?", handle.Key, handle.Owner)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// SweepExpired removes leases whose TTL has passed and reports how many were
// reaped. Takeover already makes expired leases harmless; sweeping keeps the
// table from accumulating debris from crashed holders.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM leases WHERE expires_at_ns <= ?", s.clock().UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep leases: %w", err)
	}
	reaped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	if reaped > 0 {
		s.logger.Debug("swept expired leases", logging.Int64("count", reaped))
	}
	return reaped, nil
}

// ActiveCount reports how many live leases exist right now.
func (s *Store) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM leases WHERE expires_at_ns > ?", s.clock().UTC().UnixNano(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count leases: %w", err)
	}
	return count, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
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
