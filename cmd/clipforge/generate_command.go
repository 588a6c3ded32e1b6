package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate <text>",
		Short: "Generate a video from a text description",
		Long: `Generate a video by matching the text to stock footage.

The command blocks until the daemon finishes the whole pipeline, so expect
it to run for a while.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))

			client, err := ctx.newClient(timeout)
			if err != nil {
				return err
			}
			job, genErr := client.Generate(cmd.Context(), api.GenerateRequest{UserID: userID, Text: text})
			if job == nil {
				return genErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s: %s\n", job.ID, job.Status)
			if job.DownloadURL != "" {
				fmt.Fprintf(out, "Download: %s\n", job.DownloadURL)
				if job.LinkExpiresAt != "" {
					fmt.Fprintf(out, "Link expires: %s\n", job.LinkExpiresAt)
				}
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error: %s\n", job.ErrorMessage)
			}
			return genErr
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owning user id")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "How long to wait for the generation")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
