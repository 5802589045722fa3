package preflight

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"podwatch/internal/config"
)

// Filesystem magic numbers for mounts where inotify does not report writes
// made by other hosts.
var networkFilesystems = map[uint32]string{
	0x6969:     "nfs",
	0x517b:     "smb",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x65735546: "fuse",
	0x00c36400: "ceph",
	0x5346414f: "afs",
}

const inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// minUserWatches is the lowest inotify watch budget that comfortably covers
// a sequencing run tree.
const minUserWatches = 8192

// FilesystemType reports the short name of a network filesystem backing path,
// or "" for local filesystems and on error.
func FilesystemType(path string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return ""
	}
	return networkFilesystems[uint32(st.Type)]
}

// CheckWatchBackend flags setups where native events are likely to miss
// markers: network mounts and an exhausted inotify budget. The result is
// advisory; polling still works.
func CheckWatchBackend(root, backend string) Result {
	const name = "Watch backend"
	if backend == config.BackendPoll {
		return Result{Name: name, Passed: true, Detail: "poll"}
	}
	if fs := FilesystemType(root); fs != "" {
		return Result{
			Name:     name,
			Advisory: true,
			Detail:   fmt.Sprintf("%s is on %s; set watch.backend = \"poll\" to see writes from the sequencer host", root, fs),
		}
	}
	if limit, ok := readUserWatches(inotifyWatchesPath); ok && limit < minUserWatches {
		return Result{
			Name:     name,
			Advisory: true,
			Detail:   fmt.Sprintf("fs.inotify.max_user_watches is %d; raise it or podwatch will fall back to polling", limit),
		}
	}
	return Result{Name: name, Passed: true, Detail: backend}
}

func readUserWatches(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return n, true
}
