package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"podwatch/internal/config"
	"podwatch/internal/logging"
	"podwatch/internal/watcher"
)

type collector struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 64)}
}

func (c *collector) emit(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	select {
	case c.ch <- path:
	default:
	}
}

func (c *collector) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-c.ch:
			if got == want {
				return
			}
		case <-deadline:
			c.mu.Lock()
			defer c.mu.Unlock()
			t.Fatalf("timed out waiting for %s; saw %v", want, c.paths)
		}
	}
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func startSource(t *testing.T, src watcher.Source) *collector {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	col := newCollector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = src.Run(ctx, col.emit)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return col
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func realRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func TestPollBaselineIsSilent(t *testing.T) {
	root := realRoot(t)
	existing := filepath.Join(root, "run0", "final_summary_old.txt")
	write(t, existing)

	src, err := watcher.Open(watcher.Options{Root: root, Backend: config.BackendPoll, PollInterval: 20 * time.Millisecond, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Name() != "poll" {
		t.Fatalf("expected poll backend, got %s", src.Name())
	}
	col := startSource(t, src)

	created := filepath.Join(root, "run1", "final_summary_new.txt")
	write(t, created)
	col.waitFor(t, created)

	time.Sleep(100 * time.Millisecond)
	for _, path := range col.snapshot() {
		if path == existing {
			t.Fatalf("pre-existing marker %s must not be emitted", existing)
		}
	}
}

func TestPollOpenMissingRoot(t *testing.T) {
	_, err := watcher.Open(watcher.Options{Root: filepath.Join(t.TempDir(), "absent"), Backend: config.BackendPoll})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := watcher.Open(watcher.Options{Root: t.TempDir(), Backend: "fanotify"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNativeDetectsCreateAndRename(t *testing.T) {
	root := realRoot(t)
	src, err := watcher.Open(watcher.Options{Root: root, Backend: config.BackendNative, Logger: logging.NewNop()})
	if err != nil {
		t.Skipf("native watch unavailable: %v", err)
	}
	if src.Name() != "native" {
		t.Fatalf("expected native backend, got %s", src.Name())
	}
	col := startSource(t, src)

	created := filepath.Join(root, "run1", "final_summary_A.txt")
	write(t, created)
	col.waitFor(t, created)

	tmp := filepath.Join(root, "run1", ".final_summary_B.tmp")
	write(t, tmp)
	renamed := filepath.Join(root, "run1", "final_summary_B.txt")
	if err := os.Rename(tmp, renamed); err != nil {
		t.Fatal(err)
	}
	col.waitFor(t, renamed)
}

func TestPollReportExistingCatchesMarkersBeforeOpen(t *testing.T) {
	root := realRoot(t)
	// Written after a startup scan but before the subscription.
	gap := filepath.Join(root, "run2", "final_summary_gap.txt")
	write(t, gap)

	src, err := watcher.Open(watcher.Options{
		Root:           root,
		Backend:        config.BackendPoll,
		PollInterval:   20 * time.Millisecond,
		ReportExisting: true,
		Logger:         logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	col := startSource(t, src)
	col.waitFor(t, gap)

	time.Sleep(100 * time.Millisecond)
	count := 0
	for _, path := range col.snapshot() {
		if path == gap {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected %s once, saw %d times", gap, count)
	}
}

func TestPollFollowsSymlinkedDirectory(t *testing.T) {
	root := realRoot(t)
	outside := realRoot(t)
	if err := os.Symlink(outside, filepath.Join(root, "acq")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	src, err := watcher.Open(watcher.Options{
		Root:           root,
		Backend:        config.BackendPoll,
		PollInterval:   20 * time.Millisecond,
		FollowSymlinks: true,
		Logger:         logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	col := startSource(t, src)

	write(t, filepath.Join(outside, "run9", "final_summary_x.txt"))
	col.waitFor(t, filepath.Join(root, "acq", "run9", "final_summary_x.txt"))
}
