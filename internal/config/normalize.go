package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeRun(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeWatch()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeRun() error {
	var err error
	c.Run.Root = strings.TrimSpace(c.Run.Root)
	if c.Run.Root != "" {
		if c.Run.Root, err = ExpandPath(c.Run.Root); err != nil {
			return fmt.Errorf("run.root: %w", err)
		}
	}
	c.Run.Mode = strings.ToLower(strings.TrimSpace(c.Run.Mode))
	if c.Run.Mode == "" {
		c.Run.Mode = defaultMode
	}
	c.Run.Model = strings.TrimSpace(c.Run.Model)
	c.Run.Kit = strings.TrimSpace(c.Run.Kit)
	c.Run.Tool = strings.TrimSpace(c.Run.Tool)
	if c.Run.Tool == "" {
		c.Run.Tool = defaultTool
	}
	// Bare names resolve through PATH at dispatch time; anything path-like is expanded.
	if strings.ContainsAny(c.Run.Tool, `/\`) || strings.HasPrefix(c.Run.Tool, "~") {
		if c.Run.Tool, err = ExpandPath(c.Run.Tool); err != nil {
			return fmt.Errorf("run.tool: %w", err)
		}
	}
	c.Run.RunDate = strings.TrimSpace(c.Run.RunDate)
	c.Run.Sample = strings.TrimSpace(c.Run.Sample)
	c.Run.Amplification = strings.TrimSpace(c.Run.Amplification)
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Preset = strings.ToLower(strings.TrimSpace(c.Pipeline.Preset))
	if c.Pipeline.Preset == "" {
		if len(c.Pipeline.Args) > 0 {
			c.Pipeline.Preset = PresetCustom
		} else {
			c.Pipeline.Preset = defaultPreset
		}
	}
	args := make([]string, 0, len(c.Pipeline.Args))
	for _, arg := range c.Pipeline.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Pipeline.Args = args
	c.Pipeline.OutputStyle = strings.ToLower(strings.TrimSpace(c.Pipeline.OutputStyle))
	if c.Pipeline.OutputStyle == "" {
		c.Pipeline.OutputStyle = OutputStyleArgument
	}
	c.Pipeline.SimplexOutput = strings.TrimSpace(c.Pipeline.SimplexOutput)
	if c.Pipeline.SimplexOutput == "" {
		c.Pipeline.SimplexOutput = defaultSimplexOutput
	}
	c.Pipeline.DuplexOutput = strings.TrimSpace(c.Pipeline.DuplexOutput)
	if c.Pipeline.DuplexOutput == "" {
		c.Pipeline.DuplexOutput = defaultDuplexOutput
	}
	if c.Pipeline.KillGraceSeconds == 0 {
		c.Pipeline.KillGraceSeconds = defaultKillGraceSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.Recipients = SplitRecipients(c.Notifications.Recipients...)
	c.Notifications.SMTPHost = strings.TrimSpace(c.Notifications.SMTPHost)
	if c.Notifications.SMTPHost == "" {
		c.Notifications.SMTPHost = defaultSMTPHost
	}
	if c.Notifications.SMTPPort == 0 {
		c.Notifications.SMTPPort = defaultSMTPPort
	}
	if c.Notifications.TimeoutSeconds == 0 {
		c.Notifications.TimeoutSeconds = defaultSMTPTimeout
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.Backend = strings.ToLower(strings.TrimSpace(c.Watch.Backend))
	if c.Watch.Backend == "" {
		c.Watch.Backend = defaultBackend
	}
	if c.Watch.PollIntervalMS == 0 {
		c.Watch.PollIntervalMS = defaultPollIntervalMS
	}
	c.Watch.StartOrder = strings.ToLower(strings.TrimSpace(c.Watch.StartOrder))
	if c.Watch.StartOrder == "" {
		c.Watch.StartOrder = defaultStartOrder
	}
	if c.Watch.LocatorLevels == 0 {
		c.Watch.LocatorLevels = defaultLocatorLevels
	}
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// SplitRecipients flattens comma-separated recipient lists, trimming blanks and duplicates.
func SplitRecipients(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			addr := strings.TrimSpace(part)
			if addr == "" {
				continue
			}
			key := strings.ToLower(addr)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
