// Package daemon coordinates the long-running podwatch process for one
// monitored run.
//
// It wires the startup scanner, the filesystem watcher, and the optional
// device-rescan monitor into a single handling path with flock-based locking
// so only one instance watches a given root. Every marker event, whatever its
// origin, is claimed in the daemon-owned dedup tracker before a worker sends
// the notification, locates the pod5 folder, and dispatches the basecaller.
//
// Keep orchestration logic here: matching, locating, notifying, and running
// the tool live in their own packages while the daemon focuses on startup
// ordering, bounded concurrency, and shutdown.
package daemon
