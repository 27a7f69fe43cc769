package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"verdant/internal/config"
	"verdant/internal/language"
	"verdant/internal/workerpool"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the provider api_key values before identifying plants.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Config path:       %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults are in effect")
			}
			fmt.Fprintf(out, "Provider order:    %s\n", strings.Join(cfg.Providers.Order, ", "))
			fmt.Fprintf(out, "Plant.id:          %s\n", providerSummary(cfg.Providers.PlantID))
			fmt.Fprintf(out, "Pl@ntNet:          %s\n", providerSummary(cfg.Providers.PlantNet))
			fmt.Fprintf(out, "Provider timeout:  %s\n", cfg.ProviderTimeout())
			fmt.Fprintf(out, "Language:          %s (%s)\n", cfg.Providers.Language, language.DisplayName(cfg.Providers.Language))
			fmt.Fprintf(out, "Breaker:           trips after %d failures, resets after %s, closes after %d probes\n",
				cfg.Breaker.FailMax, cfg.BreakerResetTimeout(), cfg.Breaker.SuccessThreshold)
			if cfg.Cache.Enabled {
				fmt.Fprintf(out, "Cache:             enabled (TTL %s, sweep every %s)\n", cfg.CacheTTL(), cfg.CacheSweepInterval())
			} else {
				fmt.Fprintln(out, "Cache:             disabled")
			}
			fmt.Fprintf(out, "Lock lease:        %s (waiters retry every %s, give up after %s)\n",
				cfg.LockLeaseTTL(), cfg.LockRetryInterval(), cfg.LockWaitTimeout())
			fmt.Fprintf(out, "Workers:           %d\n", workerpool.ParseSize(cfg.Aggregator.Workers, workerpool.DefaultSize, workerpool.MaxSize))
			fmt.Fprintf(out, "Merge limits:      %d primary / %d secondary\n", cfg.Aggregator.PrimaryLimit, cfg.Aggregator.SecondaryLimit)
			fmt.Fprintf(out, "Data dir:          %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:           %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "API bind:          %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "API token set:     %s\n", yesNo(strings.TrimSpace(cfg.Paths.APIToken) != ""))
			fmt.Fprintf(out, "Logging:           %s at %s, kept %d days\n", cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.RetentionDays)
			return nil
		},
	}
}

// providerSummary describes a provider's configuration without echoing the
// API key itself.
func providerSummary(settings config.Provider) string {
	if !settings.Enabled {
		return "disabled"
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return "enabled (API key missing)"
	}
	return "enabled (API key set)"
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
