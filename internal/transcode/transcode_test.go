package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/clipplan"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcode"
)

type fakeExecutor struct {
	binary string
	args   []string
	stderr []string
	err    error
	onRun  func()
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStderr func(string)) error {
	f.binary = binary
	f.args = args
	for _, line := range f.stderr {
		onStderr(line)
	}
	if f.onRun != nil {
		f.onRun()
	}
	return f.err
}

func mustPlan(t *testing.T, clips []clipplan.Clip) clipplan.Plan {
	t.Helper()
	plan, err := clipplan.Build(clipplan.ModeExplicit, clips, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return plan
}

func TestAssembleBuildsFFmpegArgs(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "output.mp4")
	input := filepath.Join(dir, "input-00.mp4")
	exec := &fakeExecutor{
		onRun: func() { testsupport.WriteFile(t, output, 32) },
	}

	runner, err := transcode.New("ffmpeg", transcode.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	plan := mustPlan(t, []clipplan.Clip{{Start: 1, End: 3}})
	err = runner.Assemble(context.Background(), transcode.Request{
		Inputs:     []string{input},
		Plan:       plan,
		OutputPath: output,
	}, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	joined := strings.Join(exec.args, " ")
	if !strings.Contains(joined, "-i "+input) {
		t.Fatalf("missing input flag: %s", joined)
	}
	if !strings.Contains(joined, "-filter_complex "+plan.FilterGraph()) {
		t.Fatalf("missing filter graph: %s", joined)
	}
	if !strings.Contains(joined, "-map [v] -map [a]") {
		t.Fatalf("missing stream maps: %s", joined)
	}
	if !strings.Contains(joined, "-vsync vfr") {
		t.Fatalf("missing vsync flag: %s", joined)
	}
	if exec.args[len(exec.args)-1] != output {
		t.Fatalf("output path must be last arg: %s", joined)
	}
}

func TestAssembleFailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "output.mp4")
	exec := &fakeExecutor{
		stderr: []string{"frame=  1", "Error while filtering: invalid argument"},
		err:    errors.New("exit status 1"),
		onRun:  func() { testsupport.WriteFile(t, output, 16) },
	}

	runner, err := transcode.New("ffmpeg", transcode.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = runner.Assemble(context.Background(), transcode.Request{
		Inputs:     []string{filepath.Join(dir, "input-00.mp4")},
		Plan:       mustPlan(t, []clipplan.Clip{{Start: 0, End: 2}}),
		OutputPath: output,
	}, nil)
	if err == nil {
		t.Fatal("expected assembly error")
	}
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected transcode marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid argument") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output to be removed")
	}
}

func TestAssembleRejectsInputCountMismatch(t *testing.T) {
	runner, err := transcode.New("ffmpeg", transcode.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	plan := mustPlan(t, []clipplan.Clip{{Start: 0, End: 2}})
	err = runner.Assemble(context.Background(), transcode.Request{
		Inputs:     []string{"a.mp4", "b.mp4"},
		Plan:       plan,
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
	}, nil)
	if err == nil {
		t.Fatal("expected input count mismatch error")
	}
}

func TestAssembleReportsProgress(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "output.mp4")
	exec := &fakeExecutor{
		stderr: []string{"frame= 30 fps=30 q=28.0 size= 256kB time=00:00:01.00 bitrate= 512kbits/s"},
		onRun:  func() { testsupport.WriteFile(t, output, 32) },
	}

	runner, err := transcode.New("ffmpeg", transcode.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var updates []transcode.ProgressUpdate
	err = runner.Assemble(context.Background(), transcode.Request{
		Inputs:     []string{filepath.Join(dir, "input-00.mp4")},
		Plan:       mustPlan(t, []clipplan.Clip{{Start: 0, End: 2}}),
		OutputPath: output,
	}, func(update transcode.ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected one progress update, got %d", len(updates))
	}
	if updates[0].Seconds != 1 || updates[0].Percent != 50 {
		t.Fatalf("unexpected progress: %+v", updates[0])
	}
}

func TestAssembleSurfacesStderrFromRealProcess(t *testing.T) {
	dir := t.TempDir()
	script := `#!/bin/sh
echo "frame=  1 fps=0.0 q=0.0 size= 0kB time=00:00:00.00 bitrate=N/A" >&2
echo "Error while decoding stream #0:0: Invalid data found when processing input" >&2
exit 1
`
	binary := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	runner, err := transcode.New(binary)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = runner.Assemble(context.Background(), transcode.Request{
		Inputs:     []string{filepath.Join(dir, "input-00.mp4")},
		Plan:       mustPlan(t, []clipplan.Clip{{Start: 0, End: 2}}),
		OutputPath: filepath.Join(dir, "output.mp4"),
	}, nil)
	if err == nil {
		t.Fatal("expected assembly error")
	}
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected transcode marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected process stderr in error, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := transcode.New("  "); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
