package api

import (
	"clipforge/internal/clipplan"
	"clipforge/internal/queue"
)

// FromJob converts a queue job into its API representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:         job.ID,
		UserID:     job.UserID,
		SourceKind: string(job.SourceKind),
		SourceRef:  job.SourceRef,
		Status:     string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Message: job.ProgressMessage,
		},
		OutputKey:    job.OutputKey,
		DownloadURL:  job.OutputURL,
		ErrorMessage: job.ErrorMessage,
	}
	for _, clip := range job.Clips {
		view.Clips = append(view.Clips, ClipRange{Start: clip.Start, End: clip.End})
	}
	if job.LinkExpiresAt != nil {
		view.LinkExpiresAt = job.LinkExpiresAt.Format(dateTimeFormat)
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.Format(dateTimeFormat)
	}
	return view
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// ToClips converts API clip ranges into planner clips.
func ToClips(ranges []ClipRange) []clipplan.Clip {
	if len(ranges) == 0 {
		return nil
	}
	clips := make([]clipplan.Clip, 0, len(ranges))
	for _, r := range ranges {
		clips = append(clips, clipplan.Clip{Start: r.Start, End: r.End})
	}
	return clips
}
