package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"podwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The monitored root exists, recipients are set, and the watcher polls
// quickly so tests do not depend on inotify.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Run.Root = filepath.Join(base, "experiment")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Notifications.Recipients = []string{"lab@example.org"}
	cfgVal.Watch.Backend = config.BackendPoll
	cfgVal.Watch.PollIntervalMS = 25
	cfgVal.Pipeline.KillGraceSeconds = 1
	if err := os.MkdirAll(cfgVal.Run.Root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend selects the watch backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.Backend = backend
	}
}

// WithMode sets the basecalling mode.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.Mode = mode
	}
}

// WithMaxConcurrent bounds concurrent dispatches.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxConcurrent = n
	}
}

// WithRecordingTool installs a fake basecaller that appends its arguments,
// one invocation per line, to ToolCallsPath and exits with exitCode.
func WithRecordingTool(exitCode int) ConfigOption {
	return func(b *configBuilder) {
		record := filepath.Join(b.baseDir, "tool-calls.log")
		script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' \"$*\" >> '%s'\nexit %d\n", record, exitCode)
		b.cfg.Run.Tool = writeExecutable(b.t, filepath.Join(b.baseDir, "bin"), "dorado", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default basecaller is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"dorado"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeExecutable(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func writeExecutable(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

// ToolCallsPath is where WithRecordingTool records invocations.
func ToolCallsPath(cfg *config.Config) string {
	return filepath.Join(BaseDir(cfg), "tool-calls.log")
}

// MonitoredRun resolves cfg into a run, failing the test on error.
func MonitoredRun(t testing.TB, cfg *config.Config) config.MonitoredRun {
	t.Helper()
	run, err := cfg.ResolveRun()
	if err != nil {
		t.Fatalf("ResolveRun: %v", err)
	}
	return run
}
