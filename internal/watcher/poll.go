package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"podwatch/internal/logging"
	"podwatch/internal/marker"
	"podwatch/internal/scanner"
)

const defaultPollInterval = 2 * time.Second

// pollSource lists the tree on an interval and emits marker files that were
// absent from the previous listing.
type pollSource struct {
	root           string
	interval       time.Duration
	followSymlinks bool
	logger         *slog.Logger
	seen           map[string]struct{}
}

func newPoller(opts Options, logger *slog.Logger) (*pollSource, error) {
	if _, err := os.Stat(opts.Root); err != nil {
		return nil, fmt.Errorf("poll %s: %w", opts.Root, err)
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &pollSource{
		root:           opts.Root,
		interval:       interval,
		followSymlinks: opts.FollowSymlinks,
		logger:         logger,
	}
	if opts.ReportExisting {
		// Empty baseline: the first tick reports every marker on disk.
		p.seen = map[string]struct{}{}
		return p, nil
	}
	// The baseline is silent: pre-existing markers belong to the startup scan.
	p.seen = p.list(context.Background())
	logger.Debug("poll baseline recorded",
		logging.String(logging.FieldRoot, opts.Root),
		logging.Int("markers", len(p.seen)),
		logging.Duration("interval", interval),
	)
	return p, nil
}

func (p *pollSource) Name() string { return "poll" }

func (p *pollSource) Run(ctx context.Context, emit func(path string)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := p.list(ctx)
			if ctx.Err() != nil {
				return nil
			}
			for path := range current {
				if _, ok := p.seen[path]; !ok {
					emit(path)
				}
			}
			p.seen = current
		}
	}
}

func (p *pollSource) list(ctx context.Context) map[string]struct{} {
	found := make(map[string]struct{}, len(p.seen))
	err := scanner.Walk(ctx, p.root, scanner.Options{
		FollowSymlinks: p.followSymlinks,
		Origin:         marker.OriginLiveWatch,
		OnError: func(path string, err error) {
			p.logger.Debug("poll listing error", logging.String("path", path), logging.Error(err))
		},
	}, func(evt marker.Event) {
		found[evt.Path] = struct{}{}
	})
	if err != nil && ctx.Err() == nil {
		logging.WarnWithContext(p.logger, "poll listing failed", "poll_list_failed",
			logging.String(logging.FieldRoot, p.root),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the monitored mount is still available"),
			logging.String(logging.FieldImpact, "new markers are not detected until the root is readable"),
		)
		// Keep the previous baseline so a transient outage does not re-emit everything.
		return p.seen
	}
	return found
}

func (p *pollSource) Close() error { return nil }
