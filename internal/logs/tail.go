package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	maxLineBytes       = 1024 * 1024
	defaultPollEvery   = 250 * time.Millisecond
	initialBufferBytes = 64 * 1024
)

// Last returns up to limit trailing lines of path and the offset just past
// them. A missing file yields no lines and offset 0.
func Last(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	scanner := newScanner(file)
	ring := make([]string, limit)
	count, next := 0, 0
	var offset int64
	for scanner.Scan() {
		line := scanner.Text()
		offset += int64(len(line)) + 1
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	if offset > info.Size() {
		offset = info.Size()
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, offset, nil
}

// FollowOptions tune Follow.
type FollowOptions struct {
	// Offset is where reading starts in the current target of path.
	Offset int64
	// PollEvery defaults to 250ms.
	PollEvery time.Duration
}

// Follow calls emit for every complete line appended to path until ctx is
// done. When path is a symlink that starts pointing at a different file, the
// new file is read from its beginning. Partial trailing lines are held back
// until their newline arrives.
func Follow(ctx context.Context, path string, opts FollowOptions, emit func(string)) error {
	interval := opts.PollEvery
	if interval <= 0 {
		interval = defaultPollEvery
	}
	target := resolveTarget(path)
	offset := opts.Offset

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if current := resolveTarget(path); current != target {
			target = current
			offset = 0
		}
		next, err := readComplete(target, offset, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func resolveTarget(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// readComplete emits whole lines from offset and returns the offset of the
// first unconsumed byte. A truncated file restarts from zero.
func readComplete(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, initialBufferBytes)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		emit(line[:len(line)-1])
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferBytes), maxLineBytes)
	return scanner
}
