// Package pipeline renders and runs the external basecalling command for a
// detected marker.
//
// The argument shape comes from configuration (see config.CommandTemplate).
// Each run gets its own process group and tool log under <log_dir>/tool/;
// cancellation sends SIGTERM to the group and SIGKILL after the configured
// grace period. Outcomes are reported as a Result rather than an error so the
// caller can log them uniformly.
package pipeline
