package config

import "time"

const (
	defaultMode             = ModeDuplex
	defaultModel            = "sup"
	defaultKit              = "SQK-NBD114-24"
	defaultTool             = "dorado"
	defaultPreset           = PresetFlag
	defaultSimplexOutput    = "simplex_basecalled.bam"
	defaultDuplexOutput     = "cL_inline_unaligned_duplexReads.bam"
	defaultMaxConcurrent    = 1
	defaultKillGraceSeconds = 30
	defaultSMTPHost         = "smtp.gmail.com"
	defaultSMTPPort         = 587
	defaultSMTPTimeout      = 30
	defaultBackend          = BackendAuto
	defaultPollIntervalMS   = 2000
	minPollIntervalMS       = 250
	maxPollIntervalMS       = 10000
	defaultStartOrder       = StartWatchFirst
	defaultLocatorLevels    = 3
	defaultLogDir           = "~/.local/share/podwatch/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Run: Run{
			Mode:  defaultMode,
			Model: defaultModel,
			Kit:   defaultKit,
			Tool:  defaultTool,
		},
		Pipeline: Pipeline{
			Preset:           defaultPreset,
			SimplexOutput:    defaultSimplexOutput,
			DuplexOutput:     defaultDuplexOutput,
			MaxConcurrent:    defaultMaxConcurrent,
			KillGraceSeconds: defaultKillGraceSeconds,
		},
		Notifications: Notifications{
			SMTPHost:       defaultSMTPHost,
			SMTPPort:       defaultSMTPPort,
			TimeoutSeconds: defaultSMTPTimeout,
		},
		Watch: Watch{
			Backend:        defaultBackend,
			PollIntervalMS: defaultPollIntervalMS,
			StartOrder:     defaultStartOrder,
			LocatorLevels:  defaultLocatorLevels,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// PollInterval returns the polling backend interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMS) * time.Millisecond
}

// DispatchTimeout returns the optional upper bound on one tool run; zero means none.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Pipeline.TimeoutMinutes) * time.Minute
}

// KillGrace returns how long a terminated tool may take to exit before SIGKILL.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Pipeline.KillGraceSeconds) * time.Second
}

// SMTPTimeout bounds a single notification delivery.
func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.Notifications.TimeoutSeconds) * time.Second
}
