package clipplan

import (
	"fmt"
	"strings"

	"clipforge/internal/services"
)

// Clip is a [start, end) time range in seconds extracted from a source video.
type Clip struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// Segment is one trim operation in a plan: the input file index and the
// range taken from it.
type Segment struct {
	InputIndex int
	Start      float64
	End        float64
}

// Plan is the deterministic trim-and-concatenate description handed to the
// transcoding engine. Segments are concatenated in slice order.
type Plan struct {
	Segments   []Segment
	InputCount int
}

// Mode selects how clips are derived.
type Mode int

const (
	// ModeExplicit requires caller-supplied clip ranges against one input.
	ModeExplicit Mode = iota
	// ModeWholeInputs synthesizes one full-length clip per input, in input
	// order. Used by the generate-from-text flow.
	ModeWholeInputs
)

// Build translates clip ranges into a Plan. It is a pure function: identical
// arguments always yield an identical plan, which makes retries safe.
//
// In ModeExplicit, clips apply to a single input (index 0) and must be
// non-empty with 0 <= start < end for every clip. End values beyond the
// actual media duration are not caught here; the engine reports those once
// decoding begins.
//
// In ModeWholeInputs, clips are ignored and durations supplies the full
// length of each input, in acquisition order.
func Build(mode Mode, clips []Clip, durations []float64) (Plan, error) {
	switch mode {
	case ModeExplicit:
		return buildExplicit(clips)
	case ModeWholeInputs:
		return buildWholeInputs(durations)
	default:
		return Plan{}, services.Wrap(services.ErrValidation, "plan", "", fmt.Sprintf("unknown plan mode %d", mode), nil)
	}
}

func buildExplicit(clips []Clip) (Plan, error) {
	if len(clips) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "plan", "", "no clips were defined for processing", nil)
	}
	segments := make([]Segment, 0, len(clips))
	for i, clip := range clips {
		if clip.Start < 0 {
			return Plan{}, services.Wrap(services.ErrValidation, "plan", "", fmt.Sprintf("clip %d: start %.3f must not be negative", i, clip.Start), nil)
		}
		if clip.End <= clip.Start {
			return Plan{}, services.Wrap(services.ErrValidation, "plan", "", fmt.Sprintf("clip %d: end %.3f must exceed start %.3f", i, clip.End, clip.Start), nil)
		}
		segments = append(segments, Segment{InputIndex: 0, Start: clip.Start, End: clip.End})
	}
	return Plan{Segments: segments, InputCount: 1}, nil
}

func buildWholeInputs(durations []float64) (Plan, error) {
	if len(durations) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "plan", "", "no inputs available for whole-input mode", nil)
	}
	segments := make([]Segment, 0, len(durations))
	for i, duration := range durations {
		if duration <= 0 {
			return Plan{}, services.Wrap(services.ErrValidation, "plan", "", fmt.Sprintf("input %d: unknown duration", i), nil)
		}
		segments = append(segments, Segment{InputIndex: i, Start: 0, End: duration})
	}
	return Plan{Segments: segments, InputCount: len(durations)}, nil
}

// FilterGraph renders the plan as an ffmpeg filter_complex description:
// per-segment trim/atrim with timestamps reset to zero, then a single
// concat joining every trimmed pair in plan order.
func (p Plan) FilterGraph() string {
	if len(p.Segments) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, seg := range p.Segments {
		fmt.Fprintf(&sb, "[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];",
			seg.InputIndex, formatSeconds(seg.Start), formatSeconds(seg.End), i)
		fmt.Fprintf(&sb, "[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
			seg.InputIndex, formatSeconds(seg.Start), formatSeconds(seg.End), i)
	}
	for i := range p.Segments {
		fmt.Fprintf(&sb, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=1:a=1[v][a]", len(p.Segments))
	return sb.String()
}

// TotalDuration returns the summed segment length in seconds.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.End - seg.Start
	}
	return total
}

func formatSeconds(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
