package logging_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podwatch/internal/logging"
)

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "podwatch-20240101T000000.log")
	current := filepath.Join(dir, "podwatch-20240301T000000.log")
	fresh := filepath.Join(dir, "podwatch-20240302T000000.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -40)
	for _, path := range []string{old, current, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	pruned := logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "podwatch-*.log",
		Exclude: []string{current},
	})
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be pruned, stat err=%v", old, err)
	}
	for _, path := range []string{current, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "podwatch-old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}
	if pruned := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir, Pattern: "*.log"}); pruned != 0 {
		t.Fatalf("pruned = %d, want 0", pruned)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected retention 0 to keep files: %v", err)
	}
}

func TestCleanupOldLogsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf("tool-%d.log", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		// All stale; tool-3 is the most recent.
		stamp := time.Now().AddDate(0, 0, -60+i)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	pruned := logging.CleanupOldLogs(nil, 30, logging.RetentionTarget{Dir: dir, Pattern: "tool-*.log", KeepNewest: 2})
	if pruned != 2 {
		t.Fatalf("pruned = %d, want 2", pruned)
	}
	for i, path := range paths {
		_, err := os.Stat(path)
		if i < 2 && !os.IsNotExist(err) {
			t.Fatalf("expected %s to be pruned, stat err=%v", path, err)
		}
		if i >= 2 && err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}
