package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podwatch/internal/config"
)

// runFlags are the per-run overrides accepted by watch and scan.
type runFlags struct {
	path       string
	mode       string
	model      string
	kit        string
	recipients string
	tool       string
	runDate    string
	backend    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.path, "path", "", "Experiment directory to monitor (run.root)")
	flags.StringVar(&f.mode, "mode", "", "Basecalling mode: simplex or duplex")
	flags.StringVar(&f.model, "model", "", "Basecalling model")
	flags.StringVar(&f.kit, "kit", "", "Sequencing kit identifier")
	flags.StringVar(&f.recipients, "recipients", "", "Comma-separated notification recipients")
	flags.StringVar(&f.tool, "tool", "", "Basecaller executable")
	flags.StringVar(&f.runDate, "run-date", "", "Monitor only the run directory starting with this date")
	flags.StringVar(&f.backend, "backend", "", "Watch backend: auto, native, or poll")
}

func (f *runFlags) apply(cfg *config.Config) {
	set := func(dst *string, value string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = v
		}
	}
	set(&cfg.Run.Root, f.path)
	set(&cfg.Run.Mode, f.mode)
	set(&cfg.Run.Model, f.model)
	set(&cfg.Run.Kit, f.kit)
	set(&cfg.Run.Tool, f.tool)
	set(&cfg.Run.RunDate, f.runDate)
	set(&cfg.Watch.Backend, f.backend)
	if strings.TrimSpace(f.recipients) != "" {
		cfg.Notifications.Recipients = config.SplitRecipients(f.recipients)
	}
}

type commandContext struct {
	configFlag *string
	overrides  runFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.LoadWith(path, c.overrides.apply)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// skipConfigAnnotation marks commands that must run without a loadable
// configuration, such as config init.
const skipConfigAnnotation = "podwatch/skip-config"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
