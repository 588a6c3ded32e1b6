package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("daemon unreachable: %w", err)
				}

				out := cmd.OutOrStdout()
				if status.Running {
					fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
				} else {
					fmt.Fprintln(out, "Daemon:   not running")
				}
				fmt.Fprintf(out, "Queue DB: %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "Lock:     %s\n", status.LockFilePath)

				if len(status.QueueStats) == 0 {
					fmt.Fprintln(out, "Queue is empty.")
					return nil
				}

				statuses := make([]string, 0, len(status.QueueStats))
				for name := range status.QueueStats {
					statuses = append(statuses, name)
				}
				sort.Strings(statuses)

				rows := make([][]string, 0, len(statuses))
				total := 0
				for _, name := range statuses {
					count := status.QueueStats[name]
					total += count
					rows = append(rows, []string{name, fmt.Sprintf("%d", count)})
				}
				rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})

				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Jobs"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
