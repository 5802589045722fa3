// Package dedup tracks which marker files have already been claimed for
// handling within this process.
package dedup

import (
	"path/filepath"
	"sync"
)

// Tracker is the in-memory set of claimed marker paths. The zero value is not
// usable; call New.
type Tracker struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{claimed: make(map[string]struct{})}
}

// TryClaim records path and reports true when it had not been claimed before.
// The check and insert are one atomic step, so concurrent callers observe
// exactly one true per path. Claims are never released.
func (t *Tracker) TryClaim(path string) bool {
	key := normalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.claimed[key]; ok {
		return false
	}
	t.claimed[key] = struct{}{}
	return true
}

// Claimed reports whether path has been claimed.
func (t *Tracker) Claimed(path string) bool {
	key := normalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.claimed[key]
	return ok
}

// Len returns the number of claimed paths.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.claimed)
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
