package dedup_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"podwatch/internal/dedup"
)

func TestTryClaimOnce(t *testing.T) {
	tracker := dedup.New()
	path := "/data/run1/final_summary.txt"
	if !tracker.TryClaim(path) {
		t.Fatal("first claim should succeed")
	}
	if tracker.TryClaim(path) {
		t.Fatal("second claim should fail")
	}
	if !tracker.Claimed(path) || tracker.Len() != 1 {
		t.Fatalf("unexpected tracker state: claimed=%v len=%d", tracker.Claimed(path), tracker.Len())
	}
}

func TestTryClaimNormalizesPaths(t *testing.T) {
	tracker := dedup.New()
	if !tracker.TryClaim("/data/run1/../run1/final_summary.txt") {
		t.Fatal("first claim should succeed")
	}
	if tracker.TryClaim("/data/run1/final_summary.txt") {
		t.Fatal("cleaned path should already be claimed")
	}

	t.Chdir(t.TempDir())
	rel := "final_summary_rel.txt"
	abs, _ := filepath.Abs(rel)
	if !tracker.TryClaim(rel) {
		t.Fatal("relative claim should succeed")
	}
	if tracker.TryClaim(abs) {
		t.Fatal("absolute spelling should already be claimed")
	}
}

func TestTryClaimConcurrent(t *testing.T) {
	tracker := dedup.New()
	const goroutines = 256
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if tracker.TryClaim("/data/run1/final_summary.txt") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", got)
	}
}

func TestTryClaimConcurrentDistinctPaths(t *testing.T) {
	tracker := dedup.New()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(2)
		for range 2 {
			go func() {
				defer wg.Done()
				tracker.TryClaim(fmt.Sprintf("/data/run%d/final_summary.txt", i))
			}()
		}
	}
	wg.Wait()
	if tracker.Len() != 100 {
		t.Fatalf("expected 100 claims, got %d", tracker.Len())
	}
}
