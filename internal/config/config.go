package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Run describes the sequencing run being monitored and how it is basecalled.
type Run struct {
	Root          string `toml:"root"`
	Mode          string `toml:"mode"`
	Model         string `toml:"model"`
	Kit           string `toml:"kit"`
	Tool          string `toml:"tool"`
	RunDate       string `toml:"run_date"`
	Sample        string `toml:"sample"`
	Amplification string `toml:"amplification"`
}

// Pipeline contains the external tool invocation template.
type Pipeline struct {
	Preset           string   `toml:"preset"`
	Args             []string `toml:"args"`
	OutputStyle      string   `toml:"output_style"`
	SimplexOutput    string   `toml:"simplex_output"`
	DuplexOutput     string   `toml:"duplex_output"`
	MaxConcurrent    int      `toml:"max_concurrent"`
	TimeoutMinutes   int      `toml:"timeout_minutes"`
	KillGraceSeconds int      `toml:"kill_grace_seconds"`
}

// Notifications contains SMTP notification settings. Credentials are read from
// SMTP_USER and SMTP_PASSWORD at send time and never stored in the file.
type Notifications struct {
	Recipients     []string `toml:"recipients"`
	SMTPHost       string   `toml:"smtp_host"`
	SMTPPort       int      `toml:"smtp_port"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Watch controls how markers are discovered.
type Watch struct {
	Backend           string `toml:"backend"`
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	StartOrder        string `toml:"start_order"`
	FollowSymlinks    bool   `toml:"follow_symlinks"`
	LocatorLevels     int    `toml:"locator_levels"`
	RescanOnDeviceAdd bool   `toml:"rescan_on_device_add"`
}

// Paths contains directories owned by the daemon.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for podwatch.
//
// Configuration sections by subsystem:
//   - Run: monitored root, basecalling mode, model, kit and tool
//   - Pipeline: external tool argument template and concurrency
//   - Notifications: e-mail recipients and SMTP relay
//   - Watch: event backend, startup ordering and locator depth
//   - Paths: log directory
//   - Logging: log format, level, and retention
type Config struct {
	Run           Run           `toml:"run"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Watch         Watch         `toml:"watch"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.ToolLogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ToolLogDir is where per-dispatch external tool output is captured.
func (c *Config) ToolLogDir() string {
	return filepath.Join(c.Paths.LogDir, "tool")
}
