package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podwatch/internal/config"
	"podwatch/internal/logging"
	"podwatch/internal/services"
)

// Failure reasons reported in Result.Reason.
const (
	ReasonCancelled   = "cancelled"
	ReasonTimeout     = "timeout"
	ReasonStartFailed = "start failed"
	ReasonPanic       = "panic"
	ReasonSetup       = "setup failed"
)

// Result is the outcome of one dispatch. It is logged and discarded.
type Result struct {
	Success  bool
	ExitCode int
	Reason   string
	Err      error
	Output   string
	Command  []string
	LogPath  string
	Duration time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(d *Dispatcher) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// Dispatcher runs the external basecalling tool for a marker.
type Dispatcher struct {
	template      config.CommandTemplate
	simplexOutput string
	duplexOutput  string
	toolLogDir    string
	timeout       time.Duration
	killGrace     time.Duration
	exec          Executor
	logger        *slog.Logger
}

// New constructs a dispatcher from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		template:      cfg.CommandTemplate(),
		simplexOutput: cfg.OutputName(config.ModeSimplex),
		duplexOutput:  cfg.OutputName(config.ModeDuplex),
		toolLogDir:    cfg.ToolLogDir(),
		timeout:       cfg.DispatchTimeout(),
		killGrace:     cfg.KillGrace(),
		exec:          commandExecutor{},
		logger:        logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Preview renders the command that would run for a marker without running it.
func (d *Dispatcher) Preview(run config.MonitoredRun, markerPath, pod5Folder string) Invocation {
	return Render(run, d.template, d.outputName(run.Mode), markerPath, pod5Folder)
}

func (d *Dispatcher) outputName(mode string) string {
	if mode == config.ModeSimplex {
		return d.simplexOutput
	}
	return d.duplexOutput
}

// Dispatch runs the tool once and blocks until it exits. It never retries and
// never panics; every failure is reported in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, run config.MonitoredRun, markerPath, pod5Folder string) (result Result) {
	started := time.Now()
	inv := d.Preview(run, markerPath, pod5Folder)
	result = Result{ExitCode: -1, Output: inv.OutputPath, Command: inv.CommandLine()}
	logger := logging.WithContext(ctx, d.logger)

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Reason = ReasonPanic
			result.Err = services.Wrap(services.ErrExternalTool, "pipeline", "dispatch", "recovered panic", fmt.Errorf("%v", r))
		}
		result.Duration = time.Since(started)
	}()

	toolLog, logPath, err := d.openToolLog(markerPath, started)
	if err != nil {
		result.Reason = ReasonSetup
		result.Err = services.Wrap(services.ErrTransient, "pipeline", "open tool log", "", err)
		return result
	}
	defer toolLog.Close()
	result.LogPath = logPath
	logger = logging.TeeLogger(logger, logging.NewWriterHandler(toolLog, "info"))

	stdout := io.Writer(toolLog)
	if inv.OutputStyle == config.OutputStyleStdout {
		out, err := os.OpenFile(inv.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			result.Reason = ReasonSetup
			result.Err = services.Wrap(services.ErrTransient, "pipeline", "create output", inv.OutputPath, err)
			return result
		}
		defer out.Close()
		stdout = out
	}

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger.Info("dispatching basecaller",
		logging.String(logging.FieldEventType, "dispatch_started"),
		logging.String("command", strings.Join(result.Command, " ")),
		logging.String("pod5", pod5Folder),
		logging.String("output", inv.OutputPath),
	)

	exitCode, runErr := d.exec.Run(runCtx, Command{
		Binary:    inv.Binary,
		Args:      inv.Args,
		Stdout:    stdout,
		Stderr:    toolLog,
		KillGrace: d.killGrace,
	})
	result.ExitCode = exitCode
	d.classify(ctx, runCtx, runErr, &result)

	if result.Success {
		logger.Info("basecaller finished",
			logging.String(logging.FieldEventType, "dispatch_succeeded"),
			logging.String("output", inv.OutputPath),
			logging.Duration("duration", time.Since(started)),
		)
	} else {
		logger.Info("basecaller did not complete",
			logging.String(logging.FieldEventType, "dispatch_failed"),
			logging.String("reason", result.Reason),
			logging.Int("exit_code", result.ExitCode),
			logging.Error(result.Err),
		)
	}
	return result
}

func (d *Dispatcher) classify(parent, runCtx context.Context, runErr error, result *Result) {
	switch {
	case runErr == nil:
		result.Success = true
	case parent.Err() != nil:
		result.Reason = ReasonCancelled
		result.Err = services.Wrap(services.ErrCancelled, "pipeline", "dispatch", "shutdown terminated tool", runErr)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Reason = ReasonTimeout
		result.Err = services.Wrap(services.ErrTimeout, "pipeline", "dispatch", fmt.Sprintf("exceeded %s", d.timeout), runErr)
	case errors.Is(runErr, ErrStart):
		result.Reason = ReasonStartFailed
		result.Err = services.Wrap(services.ErrExternalTool, "pipeline", "dispatch", "tool could not be started", runErr)
	case result.ExitCode >= 0:
		result.Reason = fmt.Sprintf("exit status %d", result.ExitCode)
		result.Err = services.Wrap(services.ErrExternalTool, "pipeline", "dispatch", result.Reason, runErr)
	default:
		result.Reason = "terminated"
		result.Err = services.Wrap(services.ErrExternalTool, "pipeline", "dispatch", "tool terminated by signal", runErr)
	}
}

func (d *Dispatcher) openToolLog(markerPath string, started time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(d.toolLogDir, 0o755); err != nil {
		return nil, "", err
	}
	runName := sanitizeFileName(filepath.Base(filepath.Dir(markerPath)))
	if runName == "" {
		runName = "run"
	}
	name := fmt.Sprintf("%s-%s.log", started.Format("20060102T150405.000"), runName)
	path := filepath.Join(d.toolLogDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "", " ", "_")
	return strings.TrimSpace(replacer.Replace(name))
}
