package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newCreditsCommand(ctx *commandContext) *cobra.Command {
	creditsCmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and manage user credits",
	}

	creditsCmd.AddCommand(newCreditsBalanceCommand(ctx))
	creditsCmd.AddCommand(newCreditsAddCommand(ctx))

	return creditsCmd
}

func newCreditsBalanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				credits, err := client.Credits(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credit(s)\n", credits.UserID, credits.Balance)
				return nil
			})
		},
	}
}

func newCreditsAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <user-id> <amount>",
		Short: "Add credits to a user's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[1])
			}
			return ctx.withClient(func(client *api.Client) error {
				credits, err := client.AddCredits(cmd.Context(), args[0], amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credit(s)\n", credits.UserID, credits.Balance)
				return nil
			})
		},
	}
}
