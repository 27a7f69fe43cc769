package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"verdant/internal/aggregator"
	"verdant/internal/api"
	"verdant/internal/config"
	"verdant/internal/identification"
	"verdant/internal/identification/plantid"
	"verdant/internal/identification/plantnet"
	"verdant/internal/keylock"
	"verdant/internal/logging"
	"verdant/internal/resultcache"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var organs []string
	var language string
	var includeHealth bool
	var verbose bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Identify a plant photo and show the merged ranking",
		Long: `Identify a plant photo by calling the configured providers directly and
merging their responses. The command builds the same aggregation pipeline the
daemon runs, so it is useful for troubleshooting provider behavior: circuit
state is local to the run, while the result cache (when enabled) is shared
with the daemon through the lock store.

Examples:
  verdant identify leaf.jpg
  verdant identify leaf.jpg --organ leaf --organ flower
  verdant identify leaf.jpg --health --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			service, cleanup, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := identification.Options{
				IncludeHealth: includeHealth,
				Organs:        organs,
				Language:      strings.TrimSpace(language),
			}

			started := time.Now()
			result, err := service.AggregateIdentify(cmd.Context(), content, opts)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), api.FromAggregatedResult(result, ""))
			}
			renderIdentifyResult(cmd, result, time.Since(started))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&organs, "organ", nil, "Photographed organ hint, repeatable (leaf, flower, fruit, bark)")
	cmd.Flags().StringVar(&language, "language", "", "Language for common names (overrides config)")
	cmd.Flags().BoolVar(&includeHealth, "health", false, "Request a plant health assessment")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show debug logging on stderr")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the raw JSON response")
	return cmd
}

// buildService assembles a one-shot aggregation pipeline. When caching is
// enabled the run shares the daemon's result cache and lock store, so a
// result the daemon already holds is served without provider calls.
func buildService(cfg *config.Config, logger *slog.Logger) (*aggregator.Service, func(), error) {
	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var opts []aggregator.Option
	var closers []func()
	if cfg.Cache.Enabled {
		locks, err := keylock.Open(cfg.LockDBPath(), keylock.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open lock store: %w", err)
		}
		cache, err := resultcache.Open(cfg.CacheDBPath(),
			resultcache.WithLocker(locks),
			resultcache.WithLogger(logger),
			resultcache.WithLeaseTTL(cfg.LockLeaseTTL()),
			resultcache.WithWaitTimeout(cfg.LockWaitTimeout()),
			resultcache.WithRetryInterval(cfg.LockRetryInterval()),
		)
		if err != nil {
			_ = locks.Close()
			return nil, nil, fmt.Errorf("open result cache: %w", err)
		}
		opts = append(opts, aggregator.WithCache(cache))
		closers = append(closers, func() { _ = cache.Close() }, func() { _ = locks.Close() })
	}

	service, err := aggregator.New(cfg, providers, logger, opts...)
	if err != nil {
		for _, closeStore := range closers {
			closeStore()
		}
		return nil, nil, fmt.Errorf("build aggregation service: %w", err)
	}

	cleanup := func() {
		service.Close()
		for _, closeStore := range closers {
			closeStore()
		}
	}
	return service, cleanup, nil
}

// buildProviders constructs a client for every enabled provider in configured
// priority order. The first entry is the primary provider for merging.
func buildProviders(cfg *config.Config, logger *slog.Logger) ([]identification.Provider, error) {
	var providers []identification.Provider
	for _, name := range cfg.EnabledOrder() {
		settings, _ := cfg.ProviderSettings(name)
		switch name {
		case plantid.ProviderID:
			client, err := plantid.New(settings.APIKey, settings.BaseURL, cfg.Providers.Language,
				plantid.WithLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("configure plant.id: %w", err)
			}
			providers = append(providers, client)
		case plantnet.ProviderID:
			client, err := plantnet.New(settings.APIKey, settings.BaseURL, cfg.Providers.Language,
				plantnet.WithLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("configure plantnet: %w", err)
			}
			providers = append(providers, client)
		default:
			return nil, fmt.Errorf("unknown provider %q in provider order", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	return providers, nil
}

func renderIdentifyResult(cmd *cobra.Command, result identification.AggregatedResult, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Providers", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, call := range result.ProviderResults {
		kind, detail := describeProviderCall(call)
		fmt.Fprintln(out, renderStatusLine(providerDisplayName(call.Provider), kind, detail, colorize))
	}
	fmt.Fprintln(out)

	if len(result.Suggestions) == 0 {
		fmt.Fprintln(out, "No identification candidates")
		return
	}

	cols := []tableColumn{
		{title: "#", rightAlign: true},
		{title: "Scientific Name"},
		{title: "Common Names"},
		{title: "Family"},
		{title: "Confidence", rightAlign: true},
		{title: "Source"},
	}
	rows := make([][]string, 0, len(result.Suggestions))
	for i, suggestion := range result.Suggestions {
		source := suggestion.Provider
		if n := len(suggestion.Alternates); n > 0 {
			source = fmt.Sprintf("%s +%d", source, n)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			suggestion.ScientificName,
			joinLimited(suggestion.CommonNames, 3),
			suggestion.Taxonomy.Family,
			fmt.Sprintf("%.1f%%", suggestion.Confidence*100),
			source,
		})
	}
	fmt.Fprintln(out, renderTable(cols, rows))

	if best := result.Best(); best != nil && best.Health != nil {
		health := "healthy"
		kind := statusOK
		if !best.Health.IsHealthy {
			health = "possibly unhealthy"
			kind = statusWarn
		}
		detail := fmt.Sprintf("%s (%.1f%%)", health, best.Health.Probability*100)
		if len(best.Health.Diseases) > 0 {
			top := best.Health.Diseases[0]
			detail = fmt.Sprintf("%s, top concern %s (%.1f%%)", detail, top.Name, top.Probability*100)
		}
		fmt.Fprintln(out, renderStatusLine("Health", kind, detail, colorize))
	}

	fmt.Fprintf(out, "%d of %d provider(s) succeeded in %s\n",
		result.SuccessCount(), len(result.ProviderResults), elapsed.Round(time.Millisecond))
}

func describeProviderCall(call identification.ProviderCallResult) (statusKind, string) {
	latency := call.Latency.Round(time.Millisecond)
	switch call.Status {
	case identification.CallStatusSuccess:
		if call.FromCache {
			return statusOK, fmt.Sprintf("%d suggestion(s) (cached)", len(call.Suggestions))
		}
		return statusOK, fmt.Sprintf("%d suggestion(s) in %s", len(call.Suggestions), latency)
	case identification.CallStatusCircuitOpen:
		return statusWarn, "skipped, circuit open"
	case identification.CallStatusTimeout:
		return statusError, fmt.Sprintf("timed out after %s", latency)
	default:
		detail := call.ErrorDetail
		if detail == "" {
			detail = "failed"
		}
		return statusError, detail
	}
}

func joinLimited(values []string, limit int) string {
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return strings.Join(values[:limit], ", ") + ", ..."
}
