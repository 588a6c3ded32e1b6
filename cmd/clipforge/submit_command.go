package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var objectKey string
	var sourceURL string
	var clipFlags []string
	var pending bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a clip assembly job",
		Long: `Submit a clip assembly job against an uploaded object or a remote URL.

Clips are half-open start-end ranges in source seconds, for example:
  clipforge submit --user alice --key uploads/alice/talk.mp4 --clip 12-45.5 --clip 80-95`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clips, err := parseClipFlags(clipFlags)
			if err != nil {
				return err
			}

			req := api.CreateJobRequest{
				UserID: userID,
				Clips:  clips,
			}
			switch {
			case strings.TrimSpace(sourceURL) != "":
				req.Source = "remote_url"
				req.SourceURL = sourceURL
			case pending:
				req.Source = "pending_upload"
				req.ObjectKey = objectKey
			default:
				req.Source = "upload"
				req.ObjectKey = objectKey
			}

			return ctx.withClient(func(client *api.Client) error {
				job, err := client.CreateJob(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %s queued (%s)\n", job.ID, job.Status)
				if job.Status == "pending_upload" {
					fmt.Fprintf(out, "Upload the media to %q, then run: clipforge jobs uploaded %s --user %s\n",
						job.SourceRef, job.ID, job.UserID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owning user id")
	cmd.Flags().StringVarP(&objectKey, "key", "k", "", "Object key of the uploaded source")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Remote video URL to download")
	cmd.Flags().StringArrayVar(&clipFlags, "clip", nil, "Clip range as start-end seconds (repeatable)")
	cmd.Flags().BoolVar(&pending, "pending", false, "Register the job before the upload happens")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("clip")
	return cmd
}

func parseClipFlags(values []string) ([]api.ClipRange, error) {
	clips := make([]api.ClipRange, 0, len(values))
	for _, value := range values {
		parts := strings.SplitN(strings.TrimSpace(value), "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("clip %q must be start-end", value)
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("clip %q has invalid start: %w", value, err)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("clip %q has invalid end: %w", value, err)
		}
		clips = append(clips, api.ClipRange{Start: start, End: end})
	}
	return clips, nil
}
