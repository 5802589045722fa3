// Package pod5 finds the raw-data folder that belongs to a marker file.
package pod5

import (
	"errors"
	"os"
	"path/filepath"
)

// DirName is the raw-data folder name searched for.
const DirName = "pod5"

// DefaultLevels is the number of directories searched when none is given.
const DefaultLevels = 3

// ErrNotFound is returned when no pod5 directory exists within the search depth.
var ErrNotFound = errors.New("pod5 folder not found")

// Locate returns the nearest <dir>/pod5 directory, checking the marker's own
// directory and then up to maxLevels-1 ancestors. The search stops early at the
// filesystem root. Symlinked directories count.
func Locate(markerPath string, maxLevels int) (string, error) {
	if maxLevels <= 0 {
		maxLevels = DefaultLevels
	}
	dir := filepath.Dir(filepath.Clean(markerPath))
	for range maxLevels {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrNotFound
}
