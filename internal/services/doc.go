// Package services defines shared utilities consumed by the daemon, the
// pipeline dispatcher, and the notifier.
//
// Key responsibilities:
//   - Context helpers that stamp marker paths, discovery origins, and event
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is at component boundaries.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the watcher pipeline.
package services
