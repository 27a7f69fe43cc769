package main

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"verdant/internal/config"
	"verdant/internal/identification/plantid"
	"verdant/internal/identification/plantnet"
	"verdant/internal/logging"
	"verdant/internal/obs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Providers.PlantID.APIKey = "plantid-key"
	cfg.Providers.PlantNet.APIKey = "plantnet-key"
	return &cfg
}

func TestBuildProvidersOrder(t *testing.T) {
	cfg := testConfig(t)

	providers, err := buildProviders(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ID() != plantid.ProviderID {
		t.Errorf("expected primary %q, got %q", plantid.ProviderID, providers[0].ID())
	}
	if providers[1].ID() != plantnet.ProviderID {
		t.Errorf("expected secondary %q, got %q", plantnet.ProviderID, providers[1].ID())
	}
}

func TestBuildProvidersSkipsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.PlantID.Enabled = false

	providers, err := buildProviders(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if len(providers) != 1 || providers[0].ID() != plantnet.ProviderID {
		t.Fatalf("expected plantnet only, got %d providers", len(providers))
	}
}

func TestBuildProvidersRequiresOne(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.PlantID.Enabled = false
	cfg.Providers.PlantNet.Enabled = false

	if _, err := buildProviders(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error with every provider disabled")
	}
}

func TestBuildDaemon(t *testing.T) {
	cfg := testConfig(t)
	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	d, err := buildDaemon(cfg, "", logging.NewNop(), metrics, registry)
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close daemon: %v", err)
	}
}

func TestBuildDaemonWithoutCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	d, err := buildDaemon(cfg, "", logging.NewNop(), metrics, registry)
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close daemon: %v", err)
	}
}
