package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newBrollCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "broll <text>",
		Short: "Preview the stock footage a text would resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withClient(func(client *api.Client) error {
				candidates, err := client.Broll(cmd.Context(), text)
				if err != nil {
					return err
				}
				if len(candidates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No keywords extracted.")
					return nil
				}
				rows := make([][]string, 0, len(candidates))
				for _, candidate := range candidates {
					url := candidate.URL
					if url == "" {
						url = "(no footage found)"
					}
					rows = append(rows, []string{candidate.Keyword, url})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Keyword", "Footage"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}
