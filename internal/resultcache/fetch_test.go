package resultcache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"verdant/internal/identification"
	"verdant/internal/keylock"
)

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, time.Duration) (*keylock.Handle, bool, error) {
	return nil, false, errors.New("lock backend down")
}

func (failingLocker) Release(context.Context, *keylock.Handle) error {
	return errors.New("lock backend down")
}

// denyLocker simulates permanent contention: some other process always holds
// the lease.
type denyLocker struct{}

func (denyLocker) Acquire(context.Context, string, time.Duration) (*keylock.Handle, bool, error) {
	return nil, false, nil
}

func (denyLocker) Release(context.Context, *keylock.Handle) error { return nil }

func TestGetOrFetchCachesSuccess(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return sampleSuggestions(), nil
	}

	got, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if fromCache || len(got) != 2 {
		t.Fatalf("unexpected first result: fromCache=%v got=%+v", fromCache, got)
	}

	got, fromCache, err = cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !fromCache || len(got) != 2 {
		t.Fatalf("expected cache hit: fromCache=%v got=%+v", fromCache, got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Stores != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetOrFetchNeverCachesErrors(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("upstream exploded")
	var calls atomic.Int32
	failing := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return nil, boom
	}

	if _, _, err := cache.GetOrFetch(ctx, "key-a", time.Minute, failing); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if count, _ := cache.EntryCount(ctx); count != 0 {
		t.Fatalf("error result was cached: %d entries", count)
	}

	// The next attempt fetches fresh and caches the success.
	succeeding := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return sampleSuggestions(), nil
	}
	if _, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, succeeding); err != nil || fromCache {
		t.Fatalf("recovery fetch: fromCache=%v err=%v", fromCache, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two upstream calls, got %d", calls.Load())
	}
}

func TestGetOrFetchExpiredEntryRefetches(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := newTestCache(t, WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return sampleSuggestions(), nil
	}

	if _, _, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if fromCache {
		t.Fatal("expired entry served from cache")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refetch after expiry, got %d calls", calls.Load())
	}
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	locks, err := keylock.Open(filepath.Join(t.TempDir(), "locks.db"))
	if err != nil {
		t.Fatalf("open locks: %v", err)
	}
	t.Cleanup(func() { _ = locks.Close() })

	cache := newTestCache(t,
		WithLocker(locks),
		WithRetryInterval(10*time.Millisecond),
		WithWaitTimeout(5*time.Second),
	)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return sampleSuggestions(), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	results := make([][]identification.Suggestion, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = cache.GetOrFetch(ctx, "key-hot", time.Minute, fetch)
		}(i)
	}
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d failed: %v", i, errs[i])
		}
		if len(results[i]) != 2 || results[i][0].ScientificName != "Rosa damascena" {
			t.Fatalf("waiter %d got wrong payload: %+v", i, results[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", got)
	}
}

func TestGetOrFetchDegradesWhenLockBackendFails(t *testing.T) {
	cache := newTestCache(t, WithLocker(failingLocker{}))
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return sampleSuggestions(), nil
	}

	got, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("degraded fetch must not surface lock errors: %v", err)
	}
	if fromCache || len(got) != 2 || calls.Load() != 1 {
		t.Fatalf("degraded fetch misbehaved: fromCache=%v got=%+v calls=%d", fromCache, got, calls.Load())
	}
	if stats := cache.Stats(); stats.Degraded != 1 {
		t.Fatalf("expected degraded counter 1, got %+v", stats)
	}
}

func TestGetOrFetchContendedWaiterPicksUpFill(t *testing.T) {
	cache := newTestCache(t,
		WithLocker(denyLocker{}),
		WithRetryInterval(10*time.Millisecond),
		WithWaitTimeout(2*time.Second),
	)
	ctx := context.Background()

	fetchCalled := make(chan struct{}, 1)
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		fetchCalled <- struct{}{}
		return nil, errors.New("waiter should not fetch")
	}

	// Simulate the lease holder in another process landing the fill shortly
	// after we start waiting.
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = cache.Put(context.Background(), "key-a", sampleSuggestions(), time.Minute)
	}()

	got, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("contended wait: %v", err)
	}
	if !fromCache || len(got) != 2 {
		t.Fatalf("expected fill pickup: fromCache=%v got=%+v", fromCache, got)
	}
	select {
	case <-fetchCalled:
		t.Fatal("waiter fetched despite holder fill")
	default:
	}
}

func TestGetOrFetchContendedWaitExpiryFallsBackToFetch(t *testing.T) {
	cache := newTestCache(t,
		WithLocker(denyLocker{}),
		WithRetryInterval(10*time.Millisecond),
		WithWaitTimeout(50*time.Millisecond),
	)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]identification.Suggestion, error) {
		calls.Add(1)
		return sampleSuggestions(), nil
	}

	got, fromCache, err := cache.GetOrFetch(ctx, "key-a", time.Minute, fetch)
	if err != nil {
		t.Fatalf("fallback fetch: %v", err)
	}
	if fromCache || len(got) != 2 || calls.Load() != 1 {
		t.Fatalf("fallback fetch misbehaved: fromCache=%v got=%+v calls=%d", fromCache, got, calls.Load())
	}
}
