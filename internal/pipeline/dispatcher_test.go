package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podwatch/internal/config"
	"podwatch/internal/logging"
	"podwatch/internal/services"
)

func writeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-dorado")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func newTestDispatcher(t *testing.T, mutate func(*config.Config), opts ...Option) *Dispatcher {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(&cfg, logging.NewNop(), opts...)
}

func markerTree(t *testing.T) (marker, pod5Dir string) {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "run1")
	pod5Dir = filepath.Join(runDir, "pod5")
	if err := os.MkdirAll(pod5Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker = filepath.Join(runDir, "final_summary_20240101.txt")
	if err := os.WriteFile(marker, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
	return marker, pod5Dir
}

func testRun(tool string) config.MonitoredRun {
	return config.MonitoredRun{Tool: tool, Mode: config.ModeDuplex, Model: "sup", Kit: "SQK-NBD114-24"}
}

func TestDispatchSuccessRecordsArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	t.Setenv("PODWATCH_ARGS_FILE", argsFile)
	tool := writeTool(t, `printf '%s\n' "$@" > "$PODWATCH_ARGS_FILE"`)
	marker, pod5Dir := markerTree(t)

	d := newTestDispatcher(t, nil)
	result := d.Dispatch(context.Background(), testRun(tool), marker, pod5Dir)

	if !result.Success || result.ExitCode != 0 || result.Err != nil {
		t.Fatalf("expected success, got %+v", result)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("tool did not record args: %v", err)
	}
	got := strings.Fields(string(data))
	if len(got) != 8 || got[5] != pod5Dir || got[7] != filepath.Join(filepath.Dir(marker), "cL_inline_unaligned_duplexReads.bam") {
		t.Fatalf("unexpected tool args %q", got)
	}
	logData, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("read tool log: %v", err)
	}
	if !strings.Contains(string(logData), "dispatching basecaller") {
		t.Fatalf("expected dispatch record in tool log, got %q", logData)
	}
	if result.Duration <= 0 {
		t.Fatalf("expected positive duration, got %s", result.Duration)
	}
}

func TestDispatchNonZeroExit(t *testing.T) {
	tool := writeTool(t, `echo "model not installed" >&2; exit 1`)
	marker, pod5Dir := markerTree(t)

	result := newTestDispatcher(t, nil).Dispatch(context.Background(), testRun(tool), marker, pod5Dir)

	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.ExitCode != 1 || result.Reason != "exit status 1" {
		t.Fatalf("unexpected exit detail: code=%d reason=%q", result.ExitCode, result.Reason)
	}
	if !errors.Is(result.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", result.Err)
	}
	logData, _ := os.ReadFile(result.LogPath)
	if !strings.Contains(string(logData), "model not installed") {
		t.Fatalf("expected stderr in tool log, got %q", logData)
	}
}

func TestDispatchMissingBinary(t *testing.T) {
	marker, pod5Dir := markerTree(t)
	run := testRun(filepath.Join(t.TempDir(), "no-such-dorado"))

	result := newTestDispatcher(t, nil).Dispatch(context.Background(), run, marker, pod5Dir)

	if result.Success || result.Reason != ReasonStartFailed || result.ExitCode != -1 {
		t.Fatalf("expected start failure, got %+v", result)
	}
	if !errors.Is(result.Err, ErrStart) || !errors.Is(result.Err, services.ErrExternalTool) {
		t.Fatalf("expected wrapped start error, got %v", result.Err)
	}
}

func TestDispatchStdoutStyleWritesOutputFile(t *testing.T) {
	tool := writeTool(t, `echo "subcommand=$1 model=$2"`)
	marker, pod5Dir := markerTree(t)
	d := newTestDispatcher(t, func(cfg *config.Config) {
		cfg.Pipeline.Preset = config.PresetSubcommand
	})
	run := testRun(tool)
	run.Mode = config.ModeSimplex

	result := d.Dispatch(context.Background(), run, marker, pod5Dir)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output != filepath.Join(filepath.Dir(marker), "simplex_basecalled.bam") {
		t.Fatalf("unexpected output path %s", result.Output)
	}
	data, err := os.ReadFile(result.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(data)) != "subcommand=basecaller model=sup" {
		t.Fatalf("unexpected output content %q", data)
	}
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestDispatchCancellationTerminatesProcessGroup(t *testing.T) {
	started := filepath.Join(t.TempDir(), "started")
	t.Setenv("PODWATCH_STARTED", started)
	tool := writeTool(t, `trap 'exit 143' TERM
touch "$PODWATCH_STARTED"
sleep 30 &
wait`)
	marker, pod5Dir := markerTree(t)
	d := newTestDispatcher(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- d.Dispatch(ctx, testRun(tool), marker, pod5Dir) }()

	waitForFile(t, started)
	cancel()

	select {
	case result := <-done:
		if result.Success || result.Reason != ReasonCancelled {
			t.Fatalf("expected cancelled result, got %+v", result)
		}
		if !errors.Is(result.Err, services.ErrCancelled) {
			t.Fatalf("expected cancelled marker, got %v", result.Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("dispatch did not return after cancellation")
	}
}

func TestDispatchKillsAfterGrace(t *testing.T) {
	started := filepath.Join(t.TempDir(), "started")
	t.Setenv("PODWATCH_STARTED", started)
	tool := writeTool(t, `trap '' TERM
touch "$PODWATCH_STARTED"
while :; do sleep 1; done`)
	marker, pod5Dir := markerTree(t)
	d := newTestDispatcher(t, nil)
	d.killGrace = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- d.Dispatch(ctx, testRun(tool), marker, pod5Dir) }()

	waitForFile(t, started)
	cancel()

	select {
	case result := <-done:
		if result.Reason != ReasonCancelled {
			t.Fatalf("expected cancelled result, got %+v", result)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tool ignoring SIGTERM was not killed after the grace period")
	}
}

func TestDispatchTimeout(t *testing.T) {
	tool := writeTool(t, `sleep 30 & wait`)
	marker, pod5Dir := markerTree(t)
	d := newTestDispatcher(t, nil)
	d.timeout = 200 * time.Millisecond
	d.killGrace = time.Second

	result := d.Dispatch(context.Background(), testRun(tool), marker, pod5Dir)
	if result.Success || result.Reason != ReasonTimeout {
		t.Fatalf("expected timeout result, got %+v", result)
	}
	if !errors.Is(result.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", result.Err)
	}
}

type panicExecutor struct{}

func (panicExecutor) Run(context.Context, Command) (int, error) {
	panic("executor exploded")
}

func TestDispatchRecoversPanic(t *testing.T) {
	marker, pod5Dir := markerTree(t)
	d := newTestDispatcher(t, nil, WithExecutor(panicExecutor{}))

	result := d.Dispatch(context.Background(), testRun("dorado"), marker, pod5Dir)
	if result.Success || result.Reason != ReasonPanic {
		t.Fatalf("expected panic result, got %+v", result)
	}
	if !strings.Contains(result.Err.Error(), "executor exploded") {
		t.Fatalf("expected panic value in error, got %v", result.Err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := sanitizeFileName("run 1:a/b"); got != "run_1-a-b" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := sanitizeFileName("/"); got != "" {
		t.Fatalf("expected root to sanitize to empty, got %q", got)
	}
}
