package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rjeczalik/notify"

	"podwatch/internal/logging"
)

// notify drops events when the channel is full, so keep a generous buffer and
// drain it without blocking on downstream work.
const nativeBuffer = 4096

type nativeSource struct {
	root   string
	events chan notify.EventInfo
	logger *slog.Logger

	closeOnce sync.Once
}

func newNative(root string, logger *slog.Logger) (*nativeSource, error) {
	events := make(chan notify.EventInfo, nativeBuffer)
	// Rename covers tools that write to a temporary name and move into place.
	if err := notify.Watch(filepath.Join(root, "..."), events, notify.Create, notify.Rename); err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	logger.Debug("native watch established", logging.String(logging.FieldRoot, root))
	return &nativeSource{root: root, events: events, logger: logger}, nil
}

func (n *nativeSource) Name() string { return "native" }

func (n *nativeSource) Run(ctx context.Context, emit func(path string)) error {
	defer n.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ei := <-n.events:
			n.handle(ei.Path(), emit)
		}
	}
}

func (n *nativeSource) handle(path string, emit func(string)) {
	info, err := os.Stat(path)
	if err != nil {
		// Rename source side or a file that vanished already.
		return
	}
	if !info.IsDir() {
		emit(path)
		return
	}
	// Files created before the recursive watch reached a new directory have
	// no event of their own.
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			emit(p)
		}
		return nil
	})
}

func (n *nativeSource) Close() error {
	n.closeOnce.Do(func() {
		notify.Stop(n.events)
	})
	return nil
}
