package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MonitoredRun is the immutable description of one monitored sequencing run.
// It is resolved once at startup and shared read-only by every component.
type MonitoredRun struct {
	// Root is the directory actually watched, after run-date selection and
	// symlink resolution.
	Root           string
	ConfiguredRoot string
	Mode           string
	Model          string
	Kit            string
	Tool           string
	RunDate        string
	Sample         string
	Amplification  string
	Recipients     []string
}

// ResolveRun builds the MonitoredRun for this configuration, selecting the
// run-date subdirectory when configured. The monitored root must exist.
func (c *Config) ResolveRun() (MonitoredRun, error) {
	if c.Run.Root == "" {
		return MonitoredRun{}, fmt.Errorf("run.root is required")
	}
	info, err := os.Stat(c.Run.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return MonitoredRun{}, fmt.Errorf("monitored root %s does not exist", c.Run.Root)
		}
		return MonitoredRun{}, fmt.Errorf("stat monitored root: %w", err)
	}
	if !info.IsDir() {
		return MonitoredRun{}, fmt.Errorf("monitored root %s is not a directory", c.Run.Root)
	}

	root := c.Run.Root
	if c.Run.RunDate != "" {
		root, err = selectRunDir(c.Run.Root, c.Run.RunDate)
		if err != nil {
			return MonitoredRun{}, err
		}
	}
	// Scanner and watcher must report the same spelling of a path for dedup to hold.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return MonitoredRun{
		Root:           root,
		ConfiguredRoot: c.Run.Root,
		Mode:           c.Run.Mode,
		Model:          c.Run.Model,
		Kit:            c.Run.Kit,
		Tool:           c.Run.Tool,
		RunDate:        c.Run.RunDate,
		Sample:         c.Run.Sample,
		Amplification:  c.Run.Amplification,
		Recipients:     append([]string(nil), c.Notifications.Recipients...),
	}, nil
}

// selectRunDir picks the subdirectory of root named by runDate. An exact name
// wins; otherwise exactly one child whose name starts with the date (dashes
// ignored, so 2024-01-01 matches 20240101_1530_MN...) is accepted.
func selectRunDir(root, runDate string) (string, error) {
	exact := filepath.Join(root, runDate)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read monitored root: %w", err)
	}
	compact := strings.ReplaceAll(runDate, "-", "")
	var matches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, runDate) || strings.HasPrefix(strings.ReplaceAll(name, "-", ""), compact) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run.run_date %q matches no directory under %s", runDate, root)
	case 1:
		return filepath.Join(root, matches[0]), nil
	default:
		return "", fmt.Errorf("run.run_date %q is ambiguous under %s: %s", runDate, root, strings.Join(matches, ", "))
	}
}
