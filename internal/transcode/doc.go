// Package transcode drives ffmpeg to trim and concatenate clips into a
// single output video.
package transcode
