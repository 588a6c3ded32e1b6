package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"clipforge/internal/clipplan"
	"clipforge/internal/services"
)

// ProgressUpdate captures ffmpeg progress output.
type ProgressUpdate struct {
	Seconds float64
	Percent float64
	Message string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStderr func(string)) error
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner assembles clips by driving ffmpeg with a trim/concat filter graph.
type Runner struct {
	binary string
	exec   Executor
}

// Request describes one assembly invocation.
type Request struct {
	Inputs     []string
	Plan       clipplan.Plan
	OutputPath string
}

// New constructs an ffmpeg runner.
func New(binary string, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	runner := &Runner{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Assemble runs ffmpeg against the plan's filter graph and writes the joined
// output. A failed run removes any partial output file so callers never
// publish a truncated video.
func (r *Runner) Assemble(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if len(req.Inputs) == 0 {
		return services.Wrap(services.ErrTranscode, "assemble", "", "no input files provided", nil)
	}
	if req.Plan.InputCount != len(req.Inputs) {
		return services.Wrap(services.ErrTranscode, "assemble", "",
			fmt.Sprintf("plan expects %d inputs, got %d", req.Plan.InputCount, len(req.Inputs)), nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrTranscode, "assemble", "", "output path required", nil)
	}

	args := []string{"-y", "-hide_banner", "-nostdin"}
	for _, input := range req.Inputs {
		args = append(args, "-i", input)
	}
	args = append(args,
		"-filter_complex", req.Plan.FilterGraph(),
		"-map", "[v]",
		"-map", "[a]",
		"-vsync", "vfr",
		req.OutputPath,
	)

	total := req.Plan.TotalDuration()
	var stderrTail []string
	err := r.exec.Run(ctx, r.binary, args, func(line string) {
		stderrTail = appendTail(stderrTail, line)
		if progress == nil {
			return
		}
		if update, ok := parseProgress(line, total); ok {
			progress(update)
		}
	})
	if err != nil {
		_ = os.Remove(req.OutputPath)
		detail := strings.Join(stderrTail, "\n")
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "assemble", "ffmpeg", "clip assembly timed out", err)
		}
		return services.Wrap(services.ErrTranscode, "assemble", "ffmpeg", "clip assembly failed", err)
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(req.OutputPath)
		return services.Wrap(services.ErrTranscode, "assemble", "ffmpeg", "assembly produced no output", err)
	}
	return nil
}

const stderrTailLines = 20

func appendTail(tail []string, line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return tail
	}
	tail = append(tail, trimmed)
	if len(tail) > stderrTailLines {
		tail = tail[len(tail)-stderrTailLines:]
	}
	return tail
}

// parseProgress extracts the current output timestamp from ffmpeg's stats
// lines (e.g. "frame= 120 fps=30 ... time=00:00:04.00 bitrate=...").
func parseProgress(line string, totalSeconds float64) (ProgressUpdate, bool) {
	idx := strings.Index(line, "time=")
	if idx < 0 {
		return ProgressUpdate{}, false
	}
	rest := line[idx+len("time="):]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	seconds, ok := parseTimestamp(strings.TrimSpace(rest))
	if !ok {
		return ProgressUpdate{}, false
	}
	update := ProgressUpdate{Seconds: seconds, Message: "Assembling clips"}
	if totalSeconds > 0 {
		update.Percent = seconds / totalSeconds * 100
		if update.Percent > 100 {
			update.Percent = 100
		}
	}
	return update, true
}

func parseTimestamp(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onStderr != nil {
				onStderr(scanner.Text())
			}
		}
	}()

	// Drain stderr before Wait: Wait closes the pipe, and a failing run's
	// diagnostic lines are exactly what callers need to surface.
	wg.Wait()
	waitErr := cmd.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", binary, waitErr)
	}
	return nil
}
