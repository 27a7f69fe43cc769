package plantid_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"verdant/internal/identification"
	"verdant/internal/identification/plantid"
)

const samplePayload = `{
	"access_token": "tok123",
	"result": {
		"is_healthy": {"probability": 0.31, "binary": false},
		"disease": {
			"suggestions": [
				{"name": "water excess or uneven watering", "probability": 0.54, "details": {"value": "Overwatering symptoms."}}
			]
		},
		"classification": {
			"suggestions": [
				{
					"id": "abc",
					"name": "Rosa damascena",
					"probability": 0.9534,
					"details": {
						"common_names": ["damask rose", " rose of castile "],
						"taxonomy": {"kingdom": "Plantae", "order": "Rosales", "family": "Rosaceae", "genus": "Rosa"},
						"description": {"value": "A rose hybrid cultivated for oil."},
						"gbif_id": 3004761,
						"image": {"value": "https://img.example/rosa.jpg"},
						"edible_parts": ["Flower"]
					}
				},
				{"id": "def", "name": "Rosa gallica", "probability": 1.2},
				{"id": "ghi", "name": "  ", "probability": 0.1}
			]
		}
	}
}`

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := plantid.New("", "https://example.com", "en"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestIdentifySuccess(t *testing.T) {
	content := []byte("fake-jpeg-bytes")
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Api-Key") != "key" {
			t.Fatalf("expected Api-Key header, got %q", r.Header.Get("Api-Key"))
		}
		if r.URL.Query().Get("language") != "en" {
			t.Fatalf("expected language query parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("details") == "" {
			t.Fatal("expected details query parameter")
		}
		var payload struct {
			Images []string `json:"images"`
			Health string   `json:"health"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if len(payload.Images) != 1 {
			t.Fatalf("expected one image, got %d", len(payload.Images))
		}
		gotBody, _ = base64.StdEncoding.DecodeString(payload.Images[0])
		if payload.Health != "all" {
			t.Fatalf("expected health=all, got %q", payload.Health)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(samplePayload))
	}))
	t.Cleanup(server.Close)

	client, err := plantid.New("key", server.URL, "en")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	suggestions, err := client.Identify(context.Background(), content, identification.Options{IncludeHealth: true})
	if err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
	if string(gotBody) != string(content) {
		t.Fatalf("expected image bytes round-tripped, got %q", gotBody)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected blank-name suggestion dropped, got %d suggestions", len(suggestions))
	}

	first := suggestions[0]
	if first.Provider != plantid.ProviderID {
		t.Fatalf("unexpected provider: %q", first.Provider)
	}
	if first.ScientificName != "Rosa damascena" {
		t.Fatalf("unexpected scientific name: %q", first.ScientificName)
	}
	if first.Confidence != 0.9534 || first.RawScore != 0.9534 {
		t.Fatalf("unexpected confidence: %v raw %v", first.Confidence, first.RawScore)
	}
	if len(first.CommonNames) != 2 || first.CommonNames[0] != "Damask Rose" || first.CommonNames[1] != "Rose Of Castile" {
		t.Fatalf("unexpected common names: %v", first.CommonNames)
	}
	if first.Taxonomy.Family != "Rosaceae" || first.Taxonomy.Genus != "Rosa" {
		t.Fatalf("unexpected taxonomy: %+v", first.Taxonomy)
	}
	if first.Details.GBIFID != 3004761 {
		t.Fatalf("unexpected gbif id: %d", first.Details.GBIFID)
	}
	if len(first.Details.EdibleParts) != 1 || first.Details.EdibleParts[0] != "flower" {
		t.Fatalf("unexpected edible parts: %v", first.Details.EdibleParts)
	}
	if first.Health == nil {
		t.Fatal("expected health assessment on leading suggestion")
	}
	if first.Health.IsHealthy {
		t.Fatal("expected unhealthy assessment")
	}
	if len(first.Health.Diseases) != 1 || first.Health.Diseases[0].Name != "water excess or uneven watering" {
		t.Fatalf("unexpected diseases: %+v", first.Health.Diseases)
	}

	second := suggestions[1]
	if second.Confidence != 1 {
		t.Fatalf("expected probability clamped to 1, got %v", second.Confidence)
	}
	if second.RawScore != 1.2 {
		t.Fatalf("expected raw score preserved, got %v", second.RawScore)
	}
	if second.Health != nil {
		t.Fatal("expected health only on leading suggestion")
	}
}

func TestIdentifyOmitsHealthWhenNotRequested(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Health string `json:"health"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Health != "" {
			t.Fatalf("expected health field omitted, got %q", payload.Health)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	t.Cleanup(server.Close)

	client, err := plantid.New("key", server.URL, "en")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	suggestions, err := client.Identify(context.Background(), []byte("img"), identification.Options{})
	if err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
	if suggestions[0].Health != nil {
		t.Fatal("expected no health assessment when not requested")
	}
}

func TestIdentifyLanguageCanonicalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") != "de" {
			t.Fatalf("expected canonical language code, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(samplePayload))
	}))
	t.Cleanup(server.Close)

	client, err := plantid.New("key", server.URL, "en")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Identify(context.Background(), []byte("img"), identification.Options{Language: "German"}); err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
}

func TestIdentifyRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	t.Cleanup(server.Close)

	client, err := plantid.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	suggestions, err := client.Identify(context.Background(), []byte("img"), identification.Options{})
	if err != nil {
		t.Fatalf("Identify returned error after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly two attempts, got %d", calls.Load())
	}
	if len(suggestions) == 0 {
		t.Fatal("expected suggestions from retried call")
	}
}

func TestIdentifyClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := plantid.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Identify(context.Background(), []byte("img"), identification.Options{}); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt for 4xx, got %d", calls.Load())
	}
}

func TestIdentifyEmptyContent(t *testing.T) {
	client, err := plantid.New("key", "https://example.com", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Identify(context.Background(), nil, identification.Options{}); err == nil {
		t.Fatal("expected error for empty content")
	}
}
