package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionTarget names one directory of log files to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	// Exclude lists files that are never removed, such as the active run log.
	Exclude []string
	// KeepNewest protects the most recent matches regardless of age.
	KeepNewest int
}

type logCandidate struct {
	path    string
	modTime time.Time
}

// CleanupOldLogs removes matching files older than retentionDays and returns
// how many were removed. retentionDays <= 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	pruned := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and paths.log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			pruned++
			if logger != nil {
				logger.Debug("log pruned",
					String("path", path),
					String(FieldEventType, "log_pruned"),
				)
			}
		}
	}
	return pruned
}

// expired lists the files of t older than cutoff, newest first, minus the
// excluded files and the KeepNewest most recent ones.
func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	skip := make(map[string]struct{}, len(t.Exclude))
	for _, path := range t.Exclude {
		if abs := absPath(path); abs != "" {
			skip[abs] = struct{}{}
		}
	}
	pattern := strings.TrimSpace(t.Pattern)

	var candidates []logCandidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if _, excluded := skip[path]; excluded {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, logCandidate{path: path, modTime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	var out []string
	for i, c := range candidates {
		if i < t.KeepNewest || !c.modTime.Before(cutoff) {
			continue
		}
		out = append(out, c.path)
	}
	return out
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
