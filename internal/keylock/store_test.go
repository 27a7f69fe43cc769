package keylock

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "locks.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAcquireAndRelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	handle, ok, err := store.Acquire(ctx, "photo-abc", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if handle.Owner == "" || handle.Generation != 1 {
		t.Fatalf("unexpected handle: %+v", handle)
	}

	if _, ok, err := store.Acquire(ctx, "photo-abc", time.Minute); err != nil || ok {
		t.Fatalf("second acquire should contend: ok=%v err=%v", ok, err)
	}

	if err := store.Release(ctx, handle); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok, err := store.Acquire(ctx, "photo-abc", time.Minute); err != nil || !ok {
		t.Fatalf("acquire after release failed: ok=%v err=%v", ok, err)
	}
}

func TestAcquireDistinctKeysIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Acquire(ctx, "photo-a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire photo-a: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Acquire(ctx, "photo-b", time.Minute); err != nil || !ok {
		t.Fatalf("acquire photo-b should not contend: ok=%v err=%v", ok, err)
	}
}

func TestExpiredLeaseTakenOver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := newTestStore(t, WithClock(clock))
	ctx := context.Background()

	first, ok, err := store.Acquire(ctx, "photo-abc", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	mu.Lock()
	now = now.Add(31 * time.Second)
	mu.Unlock()

	second, ok, err := store.Acquire(ctx, "photo-abc", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("takeover acquire: ok=%v err=%v", ok, err)
	}
	if second.Generation != first.Generation+1 {
		t.Fatalf("expected generation bump, got %d after %d", second.Generation, first.Generation)
	}

	// The dead holder's release must not free the new lease.
	if err := store.Release(ctx, first); err != nil {
		t.Fatalf("stale release errored: %v", err)
	}
	if _, ok, _ := store.Acquire(ctx, "photo-abc", 30*time.Second); ok {
		t.Fatal("stale release freed a taken-over lease")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan *Handle, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if handle, ok, err := store.Acquire(ctx, "photo-abc", time.Minute); err == nil && ok {
				wins <- handle
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestSweepExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := newTestStore(t, WithClock(clock))
	ctx := context.Background()

	if _, ok, err := store.Acquire(ctx, "photo-a", 10*time.Second); err != nil || !ok {
		t.Fatalf("acquire photo-a: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Acquire(ctx, "photo-b", time.Hour); err != nil || !ok {
		t.Fatalf("acquire photo-b: ok=%v err=%v", ok, err)
	}

	mu.Lock()
	now = now.Add(11 * time.Second)
	mu.Unlock()

	reaped, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected one reaped lease, got %d", reaped)
	}
	count, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one live lease, got %d", count)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
