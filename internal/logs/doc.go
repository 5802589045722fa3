// Package logs reads the watcher's log files for the CLI.
//
// Last reads the final lines of a log with bounded memory. Follow streams new
// lines as they are written and re-resolves the podwatch.log pointer, so a
// follow session survives a watcher restart that starts a new run log.
package logs
