package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"verdant/internal/api"
)

func newBreakersCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "breakers",
		Short: "Show per-provider circuit breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				if errors.Is(err, api.ErrDaemonUnavailable) {
					return errors.New("daemon is not running; circuit state is tracked by the daemon process (start it with `verdantd`)")
				}
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), status.Providers)
			}

			if len(status.Providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers registered")
				return nil
			}

			cols := []tableColumn{
				{title: "Provider"},
				{title: "State"},
				{title: "Fail Streak", rightAlign: true},
				{title: "Successes", rightAlign: true},
				{title: "Failures", rightAlign: true},
				{title: "Rejected", rightAlign: true},
				{title: "Opened At"},
			}
			rows := make([][]string, 0, len(status.Providers))
			for _, provider := range status.Providers {
				openedAt := provider.OpenedAt
				if openedAt == "" {
					openedAt = "-"
				}
				rows = append(rows, []string{
					provider.Provider,
					provider.State,
					strconv.Itoa(provider.ConsecutiveFailures),
					strconv.FormatUint(provider.TotalSuccesses, 10),
					strconv.FormatUint(provider.TotalFailures, 10),
					strconv.FormatUint(provider.Rejected, 10),
					openedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cols, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit breaker state as JSON")
	return cmd
}
