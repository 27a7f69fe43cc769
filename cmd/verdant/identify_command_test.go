package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"verdant/internal/api"
)

const plantIDStubResponse = `{"result":{"classification":{"suggestions":[` +
	`{"id":"1","name":"Ficus lyrata","probability":0.91,` +
	`"details":{"common_names":["fiddle-leaf fig"],"taxonomy":{"family":"Moraceae"}}}]}}}`

func startPlantIDServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, plantIDStubResponse)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeIdentifyConfig(t *testing.T, providerURL string, cacheEnabled bool) (string, string) {
	t.Helper()

	body := fmt.Sprintf(`[providers.plantid]
api_key = "pk"
base_url = %q

[providers.plantnet]
enabled = false

[cache]
enabled = %t`, providerURL, cacheEnabled)
	configPath := writeCLIConfig(t, "", body)

	imagePath := filepath.Join(t.TempDir(), "leaf.jpg")
	if err := os.WriteFile(imagePath, []byte("fake-jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return configPath, imagePath
}

func TestIdentifyCommandTable(t *testing.T) {
	server := startPlantIDServer(t, nil)
	configPath, imagePath := writeIdentifyConfig(t, server.URL, false)

	out, _, err := runCLI(t, []string{"identify", imagePath}, configPath)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	requireContains(t, out, "Ficus lyrata")
	requireContains(t, out, "Moraceae")
	requireContains(t, out, "91.0%")
	requireContains(t, out, "1 of 1 provider(s) succeeded")
}

func TestIdentifyCommandJSON(t *testing.T) {
	server := startPlantIDServer(t, nil)
	configPath, imagePath := writeIdentifyConfig(t, server.URL, false)

	out, _, err := runCLI(t, []string{"identify", imagePath, "--json"}, configPath)
	if err != nil {
		t.Fatalf("identify --json: %v", err)
	}

	var resp api.IdentifyResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("parse output: %v\noutput:\n%s", err, out)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].ScientificName != "Ficus lyrata" {
		t.Fatalf("unexpected suggestions: %+v", resp.Suggestions)
	}
	if resp.SuccessCount != 1 {
		t.Fatalf("expected one success, got %d", resp.SuccessCount)
	}
}

func TestIdentifyCommandSharedCache(t *testing.T) {
	var calls atomic.Int64
	server := startPlantIDServer(t, &calls)
	configPath, imagePath := writeIdentifyConfig(t, server.URL, true)

	if _, _, err := runCLI(t, []string{"identify", imagePath}, configPath); err != nil {
		t.Fatalf("first identify: %v", err)
	}

	out, _, err := runCLI(t, []string{"identify", imagePath}, configPath)
	if err != nil {
		t.Fatalf("second identify: %v", err)
	}
	requireContains(t, out, "(cached)")
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}
}

func TestIdentifyCommandMissingImage(t *testing.T) {
	configPath := writeCLIConfig(t, "", "")

	_, _, err := runCLI(t, []string{"identify", filepath.Join(t.TempDir(), "missing.jpg")}, configPath)
	if err == nil || !strings.Contains(err.Error(), "read image") {
		t.Fatalf("expected read error, got %v", err)
	}
}
