package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verdant/internal/resultcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show result cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Cache.Enabled {
				fmt.Fprintln(out, "Result cache is disabled (set enabled = true under [cache] in config.toml)")
				return nil
			}

			cache, err := resultcache.Open(cfg.CacheDBPath())
			if err != nil {
				return fmt.Errorf("open result cache: %w", err)
			}
			defer cache.Close()

			entries, err := cache.EntryCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Entries: %d\n", entries)
			fmt.Fprintf(out, "Store:   %s\n", cache.Path())
			fmt.Fprintf(out, "TTL:     %s\n", cfg.CacheTTL())
			fmt.Fprintf(out, "Sweep:   every %s\n", cfg.CacheSweepInterval())
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached identification results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// The store may hold rows from an earlier run with caching
			// enabled, so clearing is not gated on the config flag.
			cache, err := resultcache.Open(cfg.CacheDBPath())
			if err != nil {
				return fmt.Errorf("open result cache: %w", err)
			}
			defer cache.Close()

			removed, err := cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Result cache is already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached result(s)\n", removed)
			return nil
		},
	}
}
