package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podwatch/internal/logging"
	"podwatch/internal/marker"
	"podwatch/internal/notifications"
	"podwatch/internal/pod5"
	"podwatch/internal/services"
)

// handlePath filters a raw watcher path before an event is minted for it.
func (d *Daemon) handlePath(path string, origin marker.Origin) {
	if !marker.IsMarker(path) {
		return
	}
	d.handle(marker.NewEvent(path, origin))
}

// handle is the single entry point for scanner, watcher and rescans. It
// claims the marker synchronously and hands the rest to a worker, so the
// caller never waits on the notifier or the tool. It reports whether the
// event produced a new claim.
func (d *Daemon) handle(evt marker.Event) bool {
	if !marker.IsMarker(evt.Path) {
		return false
	}

	d.mu.Lock()
	if !d.accepting {
		d.mu.Unlock()
		d.logger.Debug("marker ignored during shutdown",
			logging.String(logging.FieldMarker, evt.Path),
			logging.String(logging.FieldOrigin, evt.Origin.String()),
		)
		return false
	}
	if !d.tracker.TryClaim(evt.Path) {
		d.mu.Unlock()
		d.logger.Debug("marker already claimed",
			logging.String(logging.FieldEventType, "marker_duplicate"),
			logging.String(logging.FieldMarker, evt.Path),
			logging.String(logging.FieldOrigin, evt.Origin.String()),
		)
		return false
	}
	ctx := d.ctx
	d.workers.Add(1)
	d.inFlight.Add(1)
	d.mu.Unlock()

	d.logger.Info("marker detected",
		logging.String(logging.FieldEventType, "marker_claimed"),
		logging.String(logging.FieldMarker, evt.Path),
		logging.String(logging.FieldOrigin, evt.Origin.String()),
		logging.String(logging.FieldEventID, evt.ShortID()),
	)

	go d.work(ctx, evt)
	return true
}

// work runs notify, locate and dispatch for one claimed marker. The claim is
// never released, whatever the outcome.
func (d *Daemon) work(ctx context.Context, evt marker.Event) {
	defer d.workers.Done()
	defer d.inFlight.Add(-1)

	ctx = services.WithMarker(ctx, evt.Path)
	ctx = services.WithOrigin(ctx, evt.Origin.String())
	ctx = services.WithEventID(ctx, evt.ShortID())
	logger := logging.WithContext(ctx, d.logger)

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			logging.ErrorWithContext(logger, "marker handler panicked", "marker_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "report this with the log file attached"),
			)
		}
	}()

	if d.slots != nil {
		select {
		case d.slots <- struct{}{}:
			defer func() { <-d.slots }()
		case <-ctx.Done():
			d.skipped.Add(1)
			logger.Info("shutdown before marker was handled",
				logging.String(logging.FieldEventType, "marker_abandoned"),
			)
			return
		}
	}

	d.notify(ctx, logger, evt)

	folder, err := pod5.Locate(evt.Path, d.cfg.Watch.LocatorLevels)
	if err != nil {
		d.skipped.Add(1)
		if errors.Is(err, pod5.ErrNotFound) {
			err = services.Wrap(services.ErrNotFound, "daemon", "locate pod5", "", err)
		}
		logging.WarnWithContext(logger, "pod5 folder not found; basecalling skipped", "pod5_not_found",
			logging.Error(err),
			logging.String("outcome", services.Outcome(err)),
			logging.Int("levels", d.cfg.Watch.LocatorLevels),
			logging.String(logging.FieldErrorHint, "check that the run wrote a pod5 directory near the summary file"),
			logging.String(logging.FieldImpact, "marker stays claimed and will not be dispatched"),
		)
		return
	}
	if ctx.Err() != nil {
		d.skipped.Add(1)
		logger.Info("shutdown before dispatch",
			logging.String(logging.FieldEventType, "marker_abandoned"),
			logging.String("pod5", folder),
		)
		return
	}

	result := d.dispatcher.Dispatch(ctx, d.run, evt.Path, folder)
	if result.Success {
		d.dispatched.Add(1)
		logger.Info("marker processed",
			logging.String(logging.FieldEventType, "marker_processed"),
			logging.String("output", result.Output),
			logging.String("tool_log", result.LogPath),
			logging.Duration("duration", result.Duration),
			logging.Duration("since_detection", time.Since(evt.DetectedAt)),
		)
		return
	}
	d.failed.Add(1)
	logging.ErrorWithContext(logger, "basecalling failed", "marker_failed",
		logging.Error(result.Err),
		logging.String("outcome", services.Outcome(result.Err)),
		logging.String("reason", result.Reason),
		logging.Int("exit_code", result.ExitCode),
		logging.String("tool_log", result.LogPath),
		logging.String(logging.FieldErrorHint, "inspect the tool log; the marker is not retried"),
	)
}

func (d *Daemon) notify(ctx context.Context, logger *slog.Logger, evt marker.Event) {
	err := d.notifier.NotifyMarkerDetected(ctx, d.run, evt.Path)
	if err == nil {
		logger.Info("notification sent",
			logging.String(logging.FieldEventType, "notification_sent"),
			logging.Int("recipients", len(d.run.Recipients)),
		)
		return
	}
	hint := "check SMTP relay reachability and credentials"
	if errors.Is(err, notifications.ErrMissingCredentials) {
		hint = "export " + notifications.EnvUser + " and " + notifications.EnvPassword
	}
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String("outcome", services.Outcome(err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "recipients not informed; basecalling continues"),
	)
}
