// Package main hosts the podwatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the watcher in the foreground, reports
// what a one-shot scan would dispatch, checks host readiness, sends test
// e-mails, and scaffolds configuration. It centralizes configuration
// resolution and flag overrides so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
