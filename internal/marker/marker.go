// Package marker recognizes run-completion marker files and describes their
// discovery.
package marker

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix and Extension define a marker file name: final_summary*.txt.
const (
	Prefix    = "final_summary"
	Extension = ".txt"
)

// Origin records how a marker was discovered.
type Origin string

const (
	OriginStartupScan  Origin = "startup-scan"
	OriginLiveWatch    Origin = "live-watch"
	OriginDeviceRescan Origin = "device-rescan"
	OriginManualRescan Origin = "manual-rescan"
)

func (o Origin) String() string { return string(o) }

// IsMarker reports whether name is a marker file name. A path is reduced to its
// base name first. Matching is case-sensitive and does no I/O.
func IsMarker(name string) bool {
	base := filepath.Base(name)
	return filepath.Ext(base) == Extension && strings.HasPrefix(base, Prefix)
}

// Event is one detection of a marker file.
type Event struct {
	Path       string
	Origin     Origin
	ID         uuid.UUID
	DetectedAt time.Time
}

// NewEvent stamps a detection with a fresh identifier and the current time.
func NewEvent(path string, origin Origin) Event {
	return Event{
		Path:       path,
		Origin:     origin,
		ID:         uuid.New(),
		DetectedAt: time.Now(),
	}
}

// ShortID is the first block of the event identifier, used in console logs.
func (e Event) ShortID() string {
	id := e.ID.String()
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}
