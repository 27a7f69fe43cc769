package resultcache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"verdant/internal/identification"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "results.db"), opts...)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func sampleSuggestions() []identification.Suggestion {
	return []identification.Suggestion{
		{Provider: "plantid", ScientificName: "Rosa damascena", Confidence: 0.95},
		{Provider: "plantid", ScientificName: "Rosa gallica", Confidence: 0.52},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, "key-a", sampleSuggestions(), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(ctx, "key-a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ScientificName != "Rosa damascena" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if _, ok, err := cache.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss for unknown key: ok=%v err=%v", ok, err)
	}
}

func TestPutReplacesAtomically(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, "key-a", sampleSuggestions(), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	replacement := []identification.Suggestion{{Provider: "plantnet", ScientificName: "Rosa canina", Confidence: 0.7}}
	if err := cache.Put(ctx, "key-a", replacement, time.Minute); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, ok, err := cache.Get(ctx, "key-a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ScientificName != "Rosa canina" {
		t.Fatalf("replacement not visible: %+v", got)
	}
}

func TestExpiredEntryReadsAsMiss(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := newTestCache(t, WithClock(clock))
	ctx := context.Background()

	if err := cache.Put(ctx, "key-a", sampleSuggestions(), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "key-a"); !ok {
		t.Fatal("fresh entry should hit")
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if _, ok, err := cache.Get(ctx, "key-a"); err != nil || ok {
		t.Fatalf("expired entry should miss: ok=%v err=%v", ok, err)
	}
}

func TestCorruptEntryReadsAsMissAndHeals(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.db.ExecContext(ctx, `
        INSERT INTO entries (key, payload, created_at_ns, ttl_ns, expires_at_ns)
        VALUES (?, ?, ?, ?, ?)`,
		"key-a", "{not-json", time.Now().UnixNano(), int64(time.Hour), time.Now().Add(time.Hour).UnixNano())
	if err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	if _, ok, err := cache.Get(ctx, "key-a"); err != nil || ok {
		t.Fatalf("corrupt entry should miss without error: ok=%v err=%v", ok, err)
	}
	if stats := cache.Stats(); stats.Corrupt != 1 {
		t.Fatalf("expected corrupt counter 1, got %+v", stats)
	}

	// The corrupt row is gone, so a fresh write lands cleanly.
	if err := cache.Put(ctx, "key-a", sampleSuggestions(), time.Minute); err != nil {
		t.Fatalf("heal put: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "key-a"); !ok {
		t.Fatal("healed entry should hit")
	}
}

func TestSweepExpiredAndClear(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := newTestCache(t, WithClock(clock))
	ctx := context.Background()

	if err := cache.Put(ctx, "short", sampleSuggestions(), time.Minute); err != nil {
		t.Fatalf("put short: %v", err)
	}
	if err := cache.Put(ctx, "long", sampleSuggestions(), time.Hour); err != nil {
		t.Fatalf("put long: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	reaped, err := cache.SweepExpired(ctx)
	if err != nil || reaped != 1 {
		t.Fatalf("sweep: reaped=%d err=%v", reaped, err)
	}
	count, err := cache.EntryCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("entry count: count=%d err=%v", count, err)
	}

	dropped, err := cache.Clear(ctx)
	if err != nil || dropped != 1 {
		t.Fatalf("clear: dropped=%d err=%v", dropped, err)
	}
}
