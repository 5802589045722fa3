package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteMarker creates dir (and parents) and an empty marker file named name
// inside it, returning the marker path.
func WriteMarker(t testing.TB, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("instrument=MN12345\n"), 0o644); err != nil {
		t.Fatalf("write marker %s: %v", path, err)
	}
	return path
}

// MakePod5 creates a pod5 folder holding one small reads file under dir and
// returns the folder path.
func MakePod5(t testing.TB, dir string) string {
	t.Helper()
	folder := filepath.Join(dir, "pod5")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", folder, err)
	}
	reads := bytes.Repeat([]byte{0x42}, 64)
	if err := os.WriteFile(filepath.Join(folder, "reads_0.pod5"), reads, 0o644); err != nil {
		t.Fatalf("write reads in %s: %v", folder, err)
	}
	return folder
}

// ReadLines returns the non-empty lines of path, or nil when it does not exist.
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
