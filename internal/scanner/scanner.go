// Package scanner walks a monitored root once and reports marker files that
// already exist.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"podwatch/internal/marker"
)

// Options tune a scan.
type Options struct {
	// FollowSymlinks descends into symlinked directories. Each real directory
	// is visited at most once so link cycles terminate.
	FollowSymlinks bool
	// Origin is stamped on every emitted event.
	Origin marker.Origin
	// OnError receives traversal errors as they happen. The affected subtree
	// is skipped and the walk continues.
	OnError func(path string, err error)
}

// Walk calls fn for every marker file under root. It returns ctx.Err() when
// cancelled and an error only when root itself cannot be read.
func Walk(ctx context.Context, root string, opts Options, fn func(marker.Event)) error {
	if opts.Origin == "" {
		opts.Origin = marker.OriginStartupScan
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("scan root %s: %w", root, err)
	}
	w := walker{ctx: ctx, opts: opts, fn: fn, visited: make(map[string]struct{})}
	return w.walk(root)
}

// Scan collects every marker under root. Traversal errors are returned
// alongside the events rather than aborting the scan.
func Scan(ctx context.Context, root string, opts Options) ([]marker.Event, []error) {
	var (
		events []marker.Event
		errs   []error
	)
	report := opts.OnError
	opts.OnError = func(path string, err error) {
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
		if report != nil {
			report(path, err)
		}
	}
	if err := Walk(ctx, root, opts, func(evt marker.Event) {
		events = append(events, evt)
	}); err != nil {
		errs = append(errs, err)
	}
	return events, errs
}

type walker struct {
	ctx     context.Context
	opts    Options
	fn      func(marker.Event)
	visited map[string]struct{}
}

// walk lists root, which may itself be a symlink to a directory. WalkDir does
// not descend through a symlinked root, so the resolved directory is walked
// and every path is reported under the spelling of root.
func (w *walker) walk(root string) error {
	base := root
	if real, err := filepath.EvalSymlinks(root); err == nil {
		if _, seen := w.visited[real]; seen {
			return nil
		}
		w.visited[real] = struct{}{}
		base = real
	}
	display := func(path string) string {
		if base == root {
			return path
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return path
		}
		return filepath.Join(root, rel)
	}

	var linked []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := w.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		shown := display(path)
		if err != nil {
			w.report(shown, err)
			if d != nil && d.IsDir() && path != base {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != base && w.opts.FollowSymlinks {
				if real, err := filepath.EvalSymlinks(path); err == nil {
					if _, seen := w.visited[real]; seen {
						return fs.SkipDir
					}
					w.visited[real] = struct{}{}
				}
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				return nil
			}
			info, err := os.Stat(path)
			if err != nil {
				w.report(shown, err)
				return nil
			}
			if info.IsDir() {
				linked = append(linked, shown)
				return nil
			}
		}
		if marker.IsMarker(d.Name()) {
			w.fn(marker.NewEvent(shown, w.opts.Origin))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, link := range linked {
		if err := w.walk(link); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) report(path string, err error) {
	if w.opts.OnError != nil {
		w.opts.OnError(path, err)
	}
}
