// Package config loads, normalizes, and validates podwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and lets CLI flags override file values before
// validation. The Config type centralizes every knob the daemon and CLI need;
// ResolveRun turns it into the immutable MonitoredRun that the watcher,
// notifier, and pipeline dispatcher share.
//
// The basecaller's argument shape is configuration data: the "flag" and
// "subcommand" presets cover the two observed CLI shapes, and "custom" accepts
// an arbitrary template built from the documented placeholders.
package config
