package daemon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"podwatch/internal/config"
	"podwatch/internal/dedup"
	"podwatch/internal/logging"
	"podwatch/internal/marker"
	"podwatch/internal/notifications"
	"podwatch/internal/pipeline"
	"podwatch/internal/scanner"
	"podwatch/internal/services"
	"podwatch/internal/watcher"
)

// State is the lifecycle phase of a Daemon.
type State string

const (
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
	StateWatching     State = "watching"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

// Dispatcher runs the external tool for one marker.
type Dispatcher interface {
	Dispatch(ctx context.Context, run config.MonitoredRun, markerPath, pod5Folder string) pipeline.Result
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier replaces the notification service built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithDispatcher replaces the pipeline dispatcher built from configuration.
func WithDispatcher(disp Dispatcher) Option {
	return func(d *Daemon) {
		if disp != nil {
			d.dispatcher = disp
		}
	}
}

// Daemon watches one monitored run and handles every marker exactly once.
type Daemon struct {
	cfg        *config.Config
	run        config.MonitoredRun
	logger     *slog.Logger
	tracker    *dedup.Tracker
	notifier   notifications.Service
	dispatcher Dispatcher
	device     *deviceMonitor

	lockPath string
	lock     *flock.Flock

	// startMu is held for the whole of Start so Stop can wait for a
	// concurrent startup scan to unwind before joining.
	startMu sync.Mutex

	mu        sync.Mutex
	state     State
	accepting bool
	backend   string
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	workers   sync.WaitGroup
	slots     chan struct{}

	inFlight   atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	State        State
	Root         string
	Backend      string
	LockFilePath string
	StartedAt    time.Time
	Claimed      int
	InFlight     int64
	Dispatched   int64
	Failed       int64
	Skipped      int64
}

// New constructs a daemon for run. The ProcessedSet is owned by the returned
// instance.
func New(cfg *config.Config, run config.MonitoredRun, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if run.Root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "monitored root is empty", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockFilePath(cfg.Paths.LogDir, run.Root)
	d := &Daemon{
		cfg:      cfg,
		run:      run,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		tracker:  dedup.New(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	if d.dispatcher == nil {
		d.dispatcher = pipeline.New(cfg, logger)
	}
	if cfg.Pipeline.MaxConcurrent > 0 {
		d.slots = make(chan struct{}, cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Watch.RescanOnDeviceAdd {
		d.device = newDeviceMonitor(logger, func(ctx context.Context) {
			if _, err := d.Rescan(ctx, marker.OriginDeviceRescan); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(d.logger, "device rescan failed", "device_rescan_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "markers on the attached device wait for the next event"),
				)
			}
		})
	}
	return d, nil
}

// LockFilePath returns the lock file guarding root. One daemon may hold it at
// a time; the pid file sits next to it with a .pid suffix.
func LockFilePath(logDir, root string) string {
	return filepath.Join(logDir, lockFileName(root))
}

// PIDFilePath derives the pid file path from a lock path.
func PIDFilePath(lockPath string) string {
	return strings.TrimSuffix(lockPath, ".lock") + ".pid"
}

func lockFileName(root string) string {
	sum := sha256.Sum256([]byte(root))
	return "podwatch-" + hex.EncodeToString(sum[:6]) + ".lock"
}

// Start acquires the per-root lock, subscribes to the root and reconciles
// markers already present. It returns once the daemon is watching; the
// startup scan runs on the caller's goroutine.
func (d *Daemon) Start(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()

	d.mu.Lock()
	if d.state != StateIdle {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("daemon cannot start from state %s", state)
	}
	d.mu.Unlock()

	info, err := os.Stat(d.run.Root)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "start", "monitored root unavailable", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "daemon", "start", d.run.Root+" is not a directory", nil)
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "daemon", "start",
			"another podwatch instance is already monitoring "+d.run.Root, nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	d.mu.Lock()
	d.ctx = runCtx
	d.cancel = cancel
	d.group = group
	d.accepting = true
	d.startedAt = time.Now()
	d.state = StateScanning
	d.mu.Unlock()

	d.logger.Info("podwatch daemon starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.String(logging.FieldRoot, d.run.Root),
		logging.String("mode", d.run.Mode),
		logging.String("start_order", d.cfg.Watch.StartOrder),
		logging.String("lock", d.lockPath),
	)

	if d.cfg.Watch.StartOrder == config.StartScanFirst {
		d.startupScan(runCtx)
		err = d.startWatcher(group, groupCtx)
	} else {
		err = d.startWatcher(group, groupCtx)
		if err == nil {
			d.startupScan(runCtx)
		}
	}
	if err != nil {
		d.abortStart()
		return err
	}

	if d.device != nil {
		group.Go(func() error {
			return d.device.Run(groupCtx)
		})
	}

	d.mu.Lock()
	if d.state == StateScanning {
		d.state = StateWatching
	}
	backend := d.backend
	d.mu.Unlock()

	d.logger.Info("podwatch daemon watching",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String(logging.FieldRoot, d.run.Root),
		logging.String("backend", backend),
		logging.Int("claimed", d.tracker.Len()),
	)
	return nil
}

func (d *Daemon) startWatcher(group *errgroup.Group, ctx context.Context) error {
	src, err := watcher.Open(watcher.Options{
		Root:           d.run.Root,
		Backend:        d.cfg.Watch.Backend,
		PollInterval:   d.cfg.PollInterval(),
		FollowSymlinks: d.cfg.Watch.FollowSymlinks,
		ReportExisting: d.cfg.Watch.StartOrder == config.StartScanFirst,
		Logger:         d.logger,
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "start watcher", d.cfg.Watch.Backend, err)
	}
	d.mu.Lock()
	d.backend = src.Name()
	d.mu.Unlock()

	group.Go(func() error {
		defer src.Close()
		err := src.Run(ctx, func(path string) {
			d.handlePath(path, marker.OriginLiveWatch)
		})
		if err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(d.logger, "filesystem watcher stopped", "watcher_failed",
				logging.Error(err),
				logging.String(logging.FieldRoot, d.run.Root),
				logging.String(logging.FieldErrorHint, "restart podwatch; consider watch.backend = \"poll\""),
			)
			return err
		}
		return nil
	})
	return nil
}

func (d *Daemon) startupScan(ctx context.Context) {
	claimed, err := d.scan(ctx, marker.OriginStartupScan)
	if err != nil && ctx.Err() == nil {
		logging.WarnWithContext(d.logger, "startup scan incomplete", "startup_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pre-existing markers may be missed until they change"),
		)
	}
	d.logger.Info("startup scan complete",
		logging.String(logging.FieldEventType, "startup_scan_complete"),
		logging.Int("claimed", claimed),
	)
}

// abortStart unwinds a failed Start while startMu is held.
func (d *Daemon) abortStart() {
	d.mu.Lock()
	cancel := d.cancel
	group := d.group
	d.accepting = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	d.workers.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}

	d.mu.Lock()
	d.state = StateIdle
	d.ctx = nil
	d.cancel = nil
	d.group = nil
	d.mu.Unlock()
}

// Stop cancels the watcher, device monitor and in-flight dispatches, waits
// for every worker and releases the lock. Repeated calls are no-ops.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if d.state != StateScanning && d.state != StateWatching {
		d.mu.Unlock()
		return
	}
	d.state = StateShuttingDown
	d.accepting = false
	cancel := d.cancel
	d.mu.Unlock()

	d.logger.Info("podwatch daemon stopping",
		logging.String(logging.FieldEventType, "daemon_stopping"),
		logging.Int64("in_flight", d.inFlight.Load()),
	)
	cancel()

	d.startMu.Lock()
	defer d.startMu.Unlock()

	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group != nil {
		if err := group.Wait(); err != nil {
			d.logger.Debug("background task ended with error", logging.Error(err))
		}
	}
	d.workers.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}

	d.mu.Lock()
	d.state = StateStopped
	d.ctx = nil
	d.cancel = nil
	d.group = nil
	d.mu.Unlock()

	d.logger.Info("podwatch daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int("claimed", d.tracker.Len()),
		logging.Int64("dispatched", d.dispatched.Load()),
		logging.Int64("failed", d.failed.Load()),
		logging.Int64("skipped", d.skipped.Load()),
	)
}

// Rescan walks the monitored root again through the regular handler and
// returns how many markers were newly claimed. Markers already claimed are
// ignored.
func (d *Daemon) Rescan(ctx context.Context, origin marker.Origin) (int, error) {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()
	if state != StateWatching && state != StateScanning {
		return 0, fmt.Errorf("daemon is not running (state %s)", state)
	}
	claimed, err := d.scan(ctx, origin)
	d.logger.Info("rescan complete",
		logging.String(logging.FieldEventType, "rescan_complete"),
		logging.String(logging.FieldOrigin, origin.String()),
		logging.Int("claimed", claimed),
	)
	return claimed, err
}

func (d *Daemon) scan(ctx context.Context, origin marker.Origin) (int, error) {
	claimed := 0
	err := scanner.Walk(ctx, d.run.Root, scanner.Options{
		FollowSymlinks: d.cfg.Watch.FollowSymlinks,
		Origin:         origin,
		OnError: func(path string, err error) {
			logging.WarnWithContext(d.logger, "directory skipped during scan", "scan_directory_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the directory"),
				logging.String(logging.FieldImpact, "markers below this directory are not detected by the scan"),
			)
		},
	}, func(evt marker.Event) {
		if d.handle(evt) {
			claimed++
		}
	})
	return claimed, err
}

// Status returns a snapshot of the daemon's bookkeeping.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		State:        d.state,
		Root:         d.run.Root,
		Backend:      d.backend,
		LockFilePath: d.lockPath,
		StartedAt:    d.startedAt,
		Claimed:      d.tracker.Len(),
		InFlight:     d.inFlight.Load(),
		Dispatched:   d.dispatched.Load(),
		Failed:       d.failed.Load(),
		Skipped:      d.skipped.Load(),
	}
}

// LockPath reports the per-root lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}
