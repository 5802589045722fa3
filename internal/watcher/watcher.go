// Package watcher delivers file-creation events from a monitored root.
//
// Two sources exist: native filesystem notifications (inotify and friends via
// rjeczalik/notify) and a polling fallback for mounts where kernel events are
// not delivered. Delivery is at-least-once; callers deduplicate.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podwatch/internal/config"
	"podwatch/internal/logging"
)

// Source emits paths of newly created files under a root.
type Source interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// Run blocks until ctx is cancelled, calling emit for every candidate
	// path. emit must not block for long.
	Run(ctx context.Context, emit func(path string)) error
	// Close releases the subscription. Run also closes on return.
	Close() error
}

var openNative = func(root string, logger *slog.Logger) (Source, error) {
	return newNative(root, logger)
}

// Options configure Open.
type Options struct {
	Root           string
	Backend        string
	PollInterval   time.Duration
	FollowSymlinks bool
	// ReportExisting makes the poller report markers already on disk at its
	// first tick instead of treating them as a silent baseline. Set it when
	// the startup scan ran before Open, so markers written in between are not
	// lost.
	ReportExisting bool
	Logger         *slog.Logger
}

// Open subscribes to Root with the configured backend. Events that happen
// after Open returns are delivered by Run. With the auto backend a native
// subscription failure falls back to polling, and FollowSymlinks selects
// polling outright since kernel watches do not traverse symlinks.
func Open(opts Options) (Source, error) {
	logger := logging.NewComponentLogger(opts.Logger, "watcher")
	switch opts.Backend {
	case config.BackendPoll:
		return newPoller(opts, logger)
	case config.BackendNative:
		return openNative(opts.Root, logger)
	case config.BackendAuto, "":
		if opts.FollowSymlinks {
			logger.Info("following symlinks; using polling backend",
				logging.String(logging.FieldEventType, "watch_backend_selected"),
				logging.String(logging.FieldRoot, opts.Root),
			)
			return newPoller(opts, logger)
		}
		src, err := openNative(opts.Root, logger)
		if err == nil {
			return src, nil
		}
		logging.WarnWithContext(logger, "native filesystem events unavailable; falling back to polling", "watch_backend_fallback",
			logging.String(logging.FieldRoot, opts.Root),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or set watch.backend = \"poll\""),
			logging.String(logging.FieldImpact, "markers are detected on the polling interval"),
		)
		return newPoller(opts, logger)
	default:
		return nil, fmt.Errorf("unknown watch backend %q", opts.Backend)
	}
}
