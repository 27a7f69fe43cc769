package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"verdant/internal/breaker"
	"verdant/internal/config"
	"verdant/internal/identification"
	"verdant/internal/obs"
	"verdant/internal/resultcache"
	"verdant/internal/services"
)

type stubProvider struct {
	id       string
	calls    atomic.Int32
	identify func(ctx context.Context, content []byte, opts identification.Options) ([]identification.Suggestion, error)
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) Identify(ctx context.Context, content []byte, opts identification.Options) ([]identification.Suggestion, error) {
	p.calls.Add(1)
	return p.identify(ctx, content, opts)
}

func fixedSuggestions(suggestions ...identification.Suggestion) func(context.Context, []byte, identification.Options) ([]identification.Suggestion, error) {
	return func(context.Context, []byte, identification.Options) ([]identification.Suggestion, error) {
		return suggestions, nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Providers.TimeoutSeconds = 2
	cfg.Breaker.FailMax = 2
	cfg.Breaker.ResetTimeoutSeconds = 3600
	return &cfg
}

func newTestService(t *testing.T, cfg *config.Config, providers []identification.Provider, opts ...Option) *Service {
	t.Helper()
	svc, err := New(cfg, providers, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestAggregateIdentifyMergesProviders(t *testing.T) {
	plantID := &stubProvider{id: "plantid"}
	plantID.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantid", ScientificName: "Rosa damascena", Confidence: 0.95},
		identification.Suggestion{Provider: "plantid", ScientificName: "Rosa gallica", Confidence: 0.41},
	)
	plantNet := &stubProvider{id: "plantnet"}
	plantNet.identify = fixedSuggestions(
		identification.Suggestion{
			Provider:       "plantnet",
			ScientificName: "Rosa damascena",
			Confidence:     0.91,
			Details:        identification.Details{GBIFID: 3004761},
		},
	)

	svc := newTestService(t, testConfig(t), []identification.Provider{plantID, plantNet})
	result, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{})
	if err != nil {
		t.Fatalf("AggregateIdentify: %v", err)
	}

	if len(result.ProviderResults) != 2 {
		t.Fatalf("expected one result per provider, got %d", len(result.ProviderResults))
	}
	if result.ProviderResults[0].Provider != "plantid" || result.ProviderResults[1].Provider != "plantnet" {
		t.Fatalf("provider results out of configured order: %+v", result.ProviderResults)
	}
	if result.SuccessCount() != 2 {
		t.Fatalf("expected 2 successes, got %d", result.SuccessCount())
	}
	if len(result.Suggestions) != 2 {
		t.Fatalf("expected merged suggestions, got %+v", result.Suggestions)
	}
	best := result.Best()
	if best == nil || best.ScientificName != "Rosa damascena" || best.Provider != "plantid" {
		t.Fatalf("unexpected best suggestion: %+v", best)
	}
	if len(best.Alternates) != 1 || best.Alternates[0].Provider != "plantnet" {
		t.Fatalf("expected plantnet alternate on best suggestion, got %+v", best.Alternates)
	}
}

func TestAggregateIdentifyRejectsEmptyContent(t *testing.T) {
	provider := &stubProvider{id: "plantid"}
	provider.identify = fixedSuggestions()

	svc := newTestService(t, testConfig(t), []identification.Provider{provider})
	_, err := svc.AggregateIdentify(context.Background(), nil, identification.Options{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls := provider.calls.Load(); calls != 0 {
		t.Fatalf("expected no provider calls for invalid input, got %d", calls)
	}
}

func TestAggregateIdentifyIsolatesProviderFailure(t *testing.T) {
	failing := &stubProvider{id: "plantid"}
	failing.identify = func(context.Context, []byte, identification.Options) ([]identification.Suggestion, error) {
		return nil, errors.New("upstream said 500")
	}
	healthy := &stubProvider{id: "plantnet"}
	healthy.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantnet", ScientificName: "Rosa centifolia", Confidence: 0.62},
	)

	svc := newTestService(t, testConfig(t), []identification.Provider{failing, healthy})
	result, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{})
	if err != nil {
		t.Fatalf("aggregate must not fail on partial provider failure: %v", err)
	}

	failed := result.ProviderResults[0]
	if failed.Status != identification.CallStatusFailure {
		t.Fatalf("expected failure status, got %q", failed.Status)
	}
	if !strings.Contains(failed.ErrorDetail, "upstream said 500") {
		t.Fatalf("expected error detail preserved, got %q", failed.ErrorDetail)
	}
	if len(failed.Suggestions) != 0 {
		t.Fatalf("failed slot must not carry suggestions: %+v", failed.Suggestions)
	}
	if result.ProviderResults[1].Status != identification.CallStatusSuccess {
		t.Fatalf("sibling provider affected by failure: %+v", result.ProviderResults[1])
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].ScientificName != "Rosa centifolia" {
		t.Fatalf("expected healthy provider's suggestions, got %+v", result.Suggestions)
	}
}

func TestAggregateIdentifyTimesOutSlowProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.TimeoutSeconds = 1

	slow := &stubProvider{id: "plantid"}
	slow.identify = func(ctx context.Context, _ []byte, _ identification.Options) ([]identification.Suggestion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	fast := &stubProvider{id: "plantnet"}
	fast.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantnet", ScientificName: "Rosa centifolia", Confidence: 0.62},
	)

	svc := newTestService(t, cfg, []identification.Provider{slow, fast})
	start := time.Now()
	result, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{})
	if err != nil {
		t.Fatalf("AggregateIdentify: %v", err)
	}
	// The request waits for the slowest provider's budget, not longer.
	if elapsed := time.Since(start); elapsed > 1900*time.Millisecond {
		t.Fatalf("aggregate took %v; the per-call timeout did not bound it", elapsed)
	}

	if result.ProviderResults[0].Status != identification.CallStatusTimeout {
		t.Fatalf("expected timeout status, got %+v", result.ProviderResults[0])
	}
	if result.ProviderResults[1].Status != identification.CallStatusSuccess {
		t.Fatalf("fast provider affected by slow sibling: %+v", result.ProviderResults[1])
	}
}

func TestAggregateIdentifyFastFailsWhileCircuitOpen(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	failing := &stubProvider{id: "plantid"}
	failing.identify = func(context.Context, []byte, identification.Options) ([]identification.Suggestion, error) {
		return nil, errors.New("connect refused")
	}
	healthy := &stubProvider{id: "plantnet"}
	healthy.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantnet", ScientificName: "Rosa centifolia", Confidence: 0.62},
	)

	svc := newTestService(t, testConfig(t), []identification.Provider{failing, healthy}, WithMetrics(metrics))

	// fail_max is 2; the first two aggregates trip the circuit.
	for i := 0; i < 2; i++ {
		if _, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{}); err != nil {
			t.Fatalf("aggregate %d: %v", i, err)
		}
	}
	result, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{})
	if err != nil {
		t.Fatalf("AggregateIdentify: %v", err)
	}

	rejected := result.ProviderResults[0]
	if rejected.Status != identification.CallStatusCircuitOpen {
		t.Fatalf("expected circuit_open status, got %+v", rejected)
	}
	if calls := failing.calls.Load(); calls != 2 {
		t.Fatalf("open circuit must not reach the provider; saw %d calls", calls)
	}
	if result.ProviderResults[1].Status != identification.CallStatusSuccess {
		t.Fatalf("healthy provider affected by sibling's open circuit: %+v", result.ProviderResults[1])
	}

	snapshots := svc.ProviderHealth()
	if len(snapshots) != 2 {
		t.Fatalf("expected snapshots for both providers, got %+v", snapshots)
	}
	if snapshots[0].Name != "plantid" || snapshots[0].State != breaker.StateOpen || snapshots[0].Rejected == 0 {
		t.Fatalf("unexpected plantid snapshot: %+v", snapshots[0])
	}
	if snapshots[1].Name != "plantnet" || snapshots[1].State != breaker.StateClosed || snapshots[1].TotalSuccesses != 3 {
		t.Fatalf("unexpected plantnet snapshot: %+v", snapshots[1])
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	seen := make(map[string]bool, len(families))
	for _, family := range families {
		seen[family.GetName()] = true
	}
	for _, name := range []string{"identify_provider_calls_total", "breaker_state", "breaker_transitions_total", "identify_requests_total"} {
		if !seen[name] {
			t.Fatalf("expected metric family %q after aggregation, got %v", name, seen)
		}
	}
}

func TestAggregateIdentifyServesRepeatsFromCache(t *testing.T) {
	cache, err := resultcache.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	provider := &stubProvider{id: "plantid"}
	provider.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantid", ScientificName: "Rosa damascena", Confidence: 0.95},
	)

	svc := newTestService(t, testConfig(t), []identification.Provider{provider}, WithCache(cache))
	content := []byte("rose.jpg")

	first, err := svc.AggregateIdentify(context.Background(), content, identification.Options{Language: "en"})
	if err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	if first.ProviderResults[0].FromCache {
		t.Fatal("first call cannot be served from cache")
	}

	second, err := svc.AggregateIdentify(context.Background(), content, identification.Options{Language: "en"})
	if err != nil {
		t.Fatalf("second aggregate: %v", err)
	}
	if !second.ProviderResults[0].FromCache {
		t.Fatalf("expected cache hit on repeat, got %+v", second.ProviderResults[0])
	}
	if calls := provider.calls.Load(); calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
	if second.Suggestions[0].ScientificName != "Rosa damascena" {
		t.Fatalf("cached suggestions corrupted: %+v", second.Suggestions)
	}

	// Different options form a different cache identity.
	if _, err := svc.AggregateIdentify(context.Background(), content, identification.Options{Language: "de"}); err != nil {
		t.Fatalf("third aggregate: %v", err)
	}
	if calls := provider.calls.Load(); calls != 2 {
		t.Fatalf("expected option change to refetch, got %d calls", calls)
	}

	if stats := svc.CacheStats(); stats.Hits == 0 || stats.Stores != 2 {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}
}

func TestAggregateIdentifyToleratesMalformedWorkerCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.Aggregator.Workers = "-5"

	provider := &stubProvider{id: "plantid"}
	provider.identify = fixedSuggestions(
		identification.Suggestion{Provider: "plantid", ScientificName: "Rosa damascena", Confidence: 0.95},
	)

	svc := newTestService(t, cfg, []identification.Provider{provider})
	result, err := svc.AggregateIdentify(context.Background(), []byte("rose.jpg"), identification.Options{})
	if err != nil {
		t.Fatalf("AggregateIdentify: %v", err)
	}
	if result.SuccessCount() != 1 {
		t.Fatalf("expected aggregation to run on the fallback pool size, got %+v", result.ProviderResults)
	}
}

func TestNewValidatesRoster(t *testing.T) {
	cfg := testConfig(t)
	provider := &stubProvider{id: "plantid"}
	provider.identify = fixedSuggestions()

	if _, err := New(nil, []identification.Provider{provider}, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("expected error for empty roster")
	}
	if _, err := New(cfg, []identification.Provider{provider, provider}, nil); err == nil {
		t.Fatal("expected error for duplicate provider")
	}
}
