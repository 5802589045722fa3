package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"podwatch/internal/config"
	"podwatch/internal/marker"
	"podwatch/internal/pipeline"
	"podwatch/internal/testsupport"
)

type countingDispatcher struct{ n atomic.Int32 }

func (c *countingDispatcher) Dispatch(context.Context, config.MonitoredRun, string, string) pipeline.Result {
	c.n.Add(1)
	return pipeline.Result{Success: true}
}

type silentNotifier struct{ n atomic.Int32 }

func (s *silentNotifier) NotifyMarkerDetected(context.Context, config.MonitoredRun, string) error {
	s.n.Add(1)
	return nil
}

func (s *silentNotifier) TestNotification(context.Context, config.MonitoredRun) error { return nil }

func newAcceptingDaemon(t *testing.T, disp Dispatcher, notifier *silentNotifier) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	run := testsupport.MonitoredRun(t, cfg)
	d, err := New(cfg, run, nil, WithDispatcher(disp), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.ctx = context.Background()
	d.accepting = true
	return d, run.Root
}

func TestHandleClaimsConcurrentDuplicatesOnce(t *testing.T) {
	disp := &countingDispatcher{}
	notifier := &silentNotifier{}
	d, root := newAcceptingDaemon(t, disp, notifier)
	runDir := filepath.Join(root, "run1")
	testsupport.MakePod5(t, runDir)
	path := testsupport.WriteMarker(t, runDir, "final_summary_20240101.txt")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 128; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			origin := marker.OriginLiveWatch
			if i%2 == 0 {
				origin = marker.OriginStartupScan
			}
			if d.handle(marker.NewEvent(path, origin)) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	d.workers.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one claim, got %d", wins.Load())
	}
	if disp.n.Load() != 1 || notifier.n.Load() != 1 {
		t.Fatalf("expected one notification and one dispatch, got %d/%d", notifier.n.Load(), disp.n.Load())
	}
	if d.inFlight.Load() != 0 {
		t.Fatalf("expected no in-flight workers, got %d", d.inFlight.Load())
	}
}

func TestHandleIgnoresNonMarkers(t *testing.T) {
	disp := &countingDispatcher{}
	d, root := newAcceptingDaemon(t, disp, &silentNotifier{})
	for _, name := range []string{"sequencing_summary.txt", "final_summary.TXT", "final_summary.txt.tmp", "reads.pod5"} {
		d.handlePath(filepath.Join(root, name), marker.OriginLiveWatch)
	}
	d.workers.Wait()
	if d.tracker.Len() != 0 || disp.n.Load() != 0 {
		t.Fatalf("expected nothing claimed, got %d claims", d.tracker.Len())
	}
}

func TestHandleRefusesAfterShutdownBegins(t *testing.T) {
	disp := &countingDispatcher{}
	d, root := newAcceptingDaemon(t, disp, &silentNotifier{})
	d.accepting = false
	if d.handle(marker.NewEvent(filepath.Join(root, "final_summary.txt"), marker.OriginLiveWatch)) {
		t.Fatal("expected handle to refuse during shutdown")
	}
	if d.tracker.Len() != 0 {
		t.Fatal("expected no claim during shutdown")
	}
}

func TestLockFileNameIsStablePerRoot(t *testing.T) {
	a := lockFileName("/data/exp1")
	if a != lockFileName("/data/exp1") {
		t.Fatal("expected stable lock name")
	}
	if a == lockFileName("/data/exp2") {
		t.Fatal("expected distinct lock names per root")
	}
	if filepath.Ext(a) != ".lock" {
		t.Fatalf("unexpected lock name %q", a)
	}
}
