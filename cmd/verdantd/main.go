package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"verdant/internal/config"
	"verdant/internal/logging"
	"verdant/internal/obs"
	"verdant/internal/preflight"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	logging.PruneLogDir(logger, cfg.Paths.LogDir, "verdant.log", cfg.Logging.RetentionDays)

	if !runPreflight(ctx, cfg, logger) {
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	d, err := buildDaemon(cfg, resolvedPath, logger, metrics, registry)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("verdantd shutting down")
}

// runPreflight logs every startup check and reports whether all passed.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) bool {
	ok := true
	for _, check := range preflight.RunAll(ctx, cfg) {
		if check.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
			continue
		}
		ok = false
		logger.Error("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail))
	}
	if !ok {
		logger.Error("preflight failed; fix the configuration and restart")
	}
	return ok
}
