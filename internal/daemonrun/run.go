package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"podwatch/internal/config"
	"podwatch/internal/daemon"
	"podwatch/internal/deps"
	"podwatch/internal/logging"
	"podwatch/internal/marker"
	"podwatch/internal/preflight"
	"podwatch/internal/services"
)

// runLogsKept is how many recent run logs survive retention regardless of age.
const runLogsKept = 5

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// DaemonOptions are passed through to daemon.New (tests inject fakes).
	DaemonOptions []daemon.Option
}

// Run starts the podwatch daemon runtime loop and blocks until SIGINT or
// SIGTERM (or cancellation of cmdCtx). SIGHUP triggers a manual rescan.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	run, err := cfg.ResolveRun()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemonrun", "resolve run", "", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	sessionID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("podwatch-%s.log", runID))

	logger, err := logging.NewFromConfig(cfg, logPath, logging.Options{
		Level:       opts.LogLevel,
		Development: opts.Development,
		SessionID:   sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logging.CloseFiles()

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update podwatch.log link: %v\n", err)
	}
	if pruned := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "podwatch-*.log", Exclude: []string{logPath}, KeepNewest: runLogsKept},
		logging.RetentionTarget{Dir: cfg.ToolLogDir(), Pattern: "*.log"},
	); pruned > 0 {
		logger.Info("old logs pruned", logging.Int("count", pruned), logging.Int("retention_days", cfg.Logging.RetentionDays))
	}
	logDependencySnapshot(signalCtx, logger, cfg, run)

	d, err := daemon.New(cfg, run, logger, opts.DaemonOptions...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	pidPath := daemon.PIDFilePath(d.LockPath())
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check run.root and that no other podwatch watches it"),
		)
		return err
	}
	defer d.Stop()
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "unable to write pid file", "pid_file_failed",
			logging.Error(err),
			logging.String("path", pidPath),
			logging.String(logging.FieldImpact, "SIGHUP rescans must target the process by other means"),
		)
	} else {
		defer os.Remove(pidPath)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("podwatch shutting down",
				logging.String(logging.FieldEventType, "shutdown_requested"),
				logging.Int64("in_flight", d.Status().InFlight),
			)
			return nil
		case <-hup:
			logger.Info("manual rescan requested",
				logging.String(logging.FieldEventType, "manual_rescan_requested"),
			)
			if _, err := d.Rescan(signalCtx, marker.OriginManualRescan); err != nil && signalCtx.Err() == nil {
				logging.WarnWithContext(logger, "manual rescan failed", "manual_rescan_failed",
					logging.Error(err),
				)
			}
		}
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "podwatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, run config.MonitoredRun) {
	if logger == nil || cfg == nil {
		return
	}
	tool := deps.CheckTool(cfg)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String(logging.FieldRoot, run.Root),
		logging.String("configured_root", run.ConfiguredRoot),
		logging.String("mode", run.Mode),
		logging.String("model", run.Model),
		logging.String("kit", run.Kit),
		logging.Bool("tool_available", tool.Available),
		logging.String("tool_binary", tool.Command),
		logging.String("preset", cfg.Pipeline.Preset),
		logging.String("backend", cfg.Watch.Backend),
		logging.Int("recipients", len(run.Recipients)),
	)

	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg, os.Getenv)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run 'podwatch check' for the full report"),
			logging.String(logging.FieldImpact, "markers may be detected but not fully handled"),
		)
	}
}
