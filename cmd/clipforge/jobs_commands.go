package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsUploadedCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.ListJobs(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.UserID,
						job.SourceKind,
						job.Status,
						progressSummary(job),
						job.CreatedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "User", "Source", "Status", "Progress", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Limit to one user's jobs")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				printJob(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owning user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newJobsUploadedCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "uploaded <job-id>",
		Short: "Confirm a pending upload finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.MarkUploaded(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", job.ID, job.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owning user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJob(cmd *cobra.Command, job *api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "User:     %s\n", job.UserID)
	fmt.Fprintf(out, "Source:   %s", job.SourceKind)
	if job.SourceRef != "" {
		fmt.Fprintf(out, " (%s)", job.SourceRef)
	}
	fmt.Fprintln(out)
	if len(job.Clips) > 0 {
		ranges := make([]string, 0, len(job.Clips))
		for _, clip := range job.Clips {
			ranges = append(ranges, fmt.Sprintf("%g-%g", clip.Start, clip.End))
		}
		fmt.Fprintf(out, "Clips:    %s\n", strings.Join(ranges, ", "))
	}
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	if summary := progressSummary(*job); summary != "" {
		fmt.Fprintf(out, "Progress: %s\n", summary)
	}
	if job.DownloadURL != "" {
		fmt.Fprintf(out, "Download: %s\n", job.DownloadURL)
	}
	if job.LinkExpiresAt != "" {
		fmt.Fprintf(out, "Expires:  %s\n", job.LinkExpiresAt)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
	}
}

func progressSummary(job api.JobView) string {
	stage := strings.TrimSpace(job.Progress.Stage)
	message := strings.TrimSpace(job.Progress.Message)
	switch {
	case stage == "" && message == "":
		return ""
	case message == "":
		return stage
	case stage == "":
		return message
	default:
		return stage + ": " + message
	}
}
