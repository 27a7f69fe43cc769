package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"verdant/internal/api"
	"verdant/internal/identification/plantid"
	"verdant/internal/identification/plantnet"
	"verdant/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, provider, and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			status, err := client.Status(cmd.Context())
			daemonUp := err == nil
			if err != nil && !errors.Is(err, api.ErrDaemonUnavailable) {
				return err
			}

			if jsonOut {
				if !daemonUp {
					status = offlineStatus(cfg, ctx.configPath)
				}
				return writeJSON(cmd.OutOrStdout(), status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if daemonUp {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK,
					fmt.Sprintf("Running (pid %d, started %s)", status.PID, status.StartedAt), colorize))
				fmt.Fprintln(stdout, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Workers", statusInfo, strconv.Itoa(status.Workers), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError,
					"Not running (start it with `verdantd`)", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Providers", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if daemonUp {
				for _, provider := range status.Providers {
					fmt.Fprintln(stdout, renderStatusLine(providerDisplayName(provider.Provider),
						breakerStatusKind(provider.State), breakerDetail(provider), colorize))
				}
			} else {
				// Circuit state lives in the daemon; fall back to config checks.
				for _, key := range []string{plantid.ProviderID, plantnet.ProviderID} {
					result := preflight.CheckProviderFromConfig(cfg, key, providerDisplayName(key))
					fmt.Fprintln(stdout, renderStatusLine(result.Name, providerConfigKind(result), result.Detail, colorize))
				}
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Stores", colorize) {
				fmt.Fprintln(stdout, line)
			}
			switch {
			case daemonUp:
				fmt.Fprintln(stdout, renderStatusLine("Result cache",
					cacheStatusKind(status.Cache), cacheStatusDetail(status.Cache), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Lock store", statusOK,
					fmt.Sprintf("%d active lease(s)", status.ActiveLeases), colorize))
			default:
				if cfg.Cache.Enabled {
					probe := preflight.ProbeCacheStore(cfg.CacheDBPath())
					fmt.Fprintln(stdout, renderStatusLine("Result cache", probeKind(probe), probe.CacheDetail(), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Result cache", statusWarn, "Disabled", colorize))
				}
				probe := preflight.ProbeLockStore(cfg.LockDBPath())
				fmt.Fprintln(stdout, renderStatusLine("Lock store", probeKind(probe), probe.LockDetail(), colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}
