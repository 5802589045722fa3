package config

import (
	"errors"
	"fmt"
	"net/mail"
)

// Backends for live marker detection.
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendPoll   = "poll"
)

// Startup orderings of the watcher and the reconciliation scan.
const (
	StartWatchFirst = "watch-first"
	StartScanFirst  = "scan-first"
)

// Validate ensures the configuration is usable. It does not touch the
// filesystem; root existence is checked by ResolveRun.
func (c *Config) Validate() error {
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return nil
}

// ValidateForWatch adds the requirements that only apply when the daemon is
// about to monitor a run.
func (c *Config) ValidateForWatch() error {
	if c.Run.Root == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/podwatch/config.toml"
		}
		return fmt.Errorf("run.root is required. Pass --path or edit %s (create with 'podwatch config init')", defaultPath)
	}
	if len(c.Notifications.Recipients) == 0 {
		return errors.New("notifications.recipients must include at least one address (or pass --recipients)")
	}
	return nil
}

func (c *Config) validateRun() error {
	switch c.Run.Mode {
	case ModeSimplex, ModeDuplex:
	default:
		return fmt.Errorf("run.mode must be %q or %q (got %q)", ModeSimplex, ModeDuplex, c.Run.Mode)
	}
	if c.Run.Model == "" {
		return errors.New("run.model must be set")
	}
	if c.Run.Kit == "" {
		return errors.New("run.kit must be set")
	}
	if c.Run.Tool == "" {
		return errors.New("run.tool must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	for _, addr := range c.Notifications.Recipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("notifications.recipients: invalid address %q: %w", addr, err)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"notifications.smtp_port":       c.Notifications.SMTPPort,
		"notifications.timeout_seconds": c.Notifications.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Notifications.SMTPPort > 65535 {
		return errors.New("notifications.smtp_port must be <= 65535")
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Backend {
	case BackendAuto, BackendNative, BackendPoll:
	default:
		return fmt.Errorf("watch.backend must be %q, %q, or %q (got %q)", BackendAuto, BackendNative, BackendPoll, c.Watch.Backend)
	}
	if c.Watch.PollIntervalMS < minPollIntervalMS || c.Watch.PollIntervalMS > maxPollIntervalMS {
		return fmt.Errorf("watch.poll_interval_ms must be between %d and %d", minPollIntervalMS, maxPollIntervalMS)
	}
	switch c.Watch.StartOrder {
	case StartWatchFirst, StartScanFirst:
	default:
		return fmt.Errorf("watch.start_order must be %q or %q (got %q)", StartWatchFirst, StartScanFirst, c.Watch.StartOrder)
	}
	if c.Watch.LocatorLevels < 1 {
		return errors.New("watch.locator_levels must be >= 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
