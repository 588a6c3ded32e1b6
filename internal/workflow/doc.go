// Package workflow orchestrates the clip assembly pipeline.
//
// A Manager polls the job store for ready jobs, claims one at a time, and
// drives it through acquisition, validation, planning, transcoding,
// publication, and the post-publish credit charge. Heartbeats keep claimed
// jobs visibly alive; jobs whose heartbeat expires are failed, never
// resumed. The generate-from-text flow runs the same pipeline synchronously
// against stock footage resolved from the caller's text.
package workflow
