package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Basecalling modes.
const (
	ModeSimplex = "simplex"
	ModeDuplex  = "duplex"
)

// Pipeline presets. The external tool CLI differs between deployments, so the
// argument shape is data rather than code.
const (
	PresetFlag       = "flag"
	PresetSubcommand = "subcommand"
	PresetCustom     = "custom"
)

// Output styles for the tool's result file.
const (
	OutputStyleArgument = "argument"
	OutputStyleStdout   = "stdout"
)

// Placeholders understood by the argument template.
const (
	PlaceholderModel      = "{model}"
	PlaceholderMode       = "{mode}"
	PlaceholderModeFlag   = "{mode_flag}"
	PlaceholderSubcommand = "{subcommand}"
	PlaceholderKit        = "{kit}"
	PlaceholderPod5       = "{pod5}"
	PlaceholderOutput     = "{output}"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z0-9_]+\}`)

var knownPlaceholders = map[string]struct{}{
	PlaceholderModel:      {},
	PlaceholderMode:       {},
	PlaceholderModeFlag:   {},
	PlaceholderSubcommand: {},
	PlaceholderKit:        {},
	PlaceholderPod5:       {},
	PlaceholderOutput:     {},
}

// CommandTemplate is the resolved argument template for the external tool.
type CommandTemplate struct {
	Args        []string
	OutputStyle string
}

var presets = map[string]CommandTemplate{
	PresetFlag: {
		Args:        []string{"basecaller", PlaceholderModel, PlaceholderModeFlag, "--kit", PlaceholderKit, PlaceholderPod5, "--output", PlaceholderOutput},
		OutputStyle: OutputStyleArgument,
	},
	PresetSubcommand: {
		Args:        []string{PlaceholderSubcommand, PlaceholderModel, PlaceholderPod5},
		OutputStyle: OutputStyleStdout,
	},
}

// PresetNames lists the built-in template names.
func PresetNames() []string {
	return []string{PresetFlag, PresetSubcommand, PresetCustom}
}

// CommandTemplate returns the argument template selected by pipeline.preset.
func (c *Config) CommandTemplate() CommandTemplate {
	if preset, ok := presets[c.Pipeline.Preset]; ok {
		return CommandTemplate{
			Args:        append([]string(nil), preset.Args...),
			OutputStyle: preset.OutputStyle,
		}
	}
	return CommandTemplate{
		Args:        append([]string(nil), c.Pipeline.Args...),
		OutputStyle: c.Pipeline.OutputStyle,
	}
}

// OutputName returns the fixed output file name for the given mode.
func (c *Config) OutputName(mode string) string {
	if mode == ModeSimplex {
		return c.Pipeline.SimplexOutput
	}
	return c.Pipeline.DuplexOutput
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Preset {
	case PresetFlag, PresetSubcommand:
	case PresetCustom:
		if len(c.Pipeline.Args) == 0 {
			return fmt.Errorf("pipeline.args must be set when pipeline.preset is %q", PresetCustom)
		}
	default:
		return fmt.Errorf("pipeline.preset must be one of %s (got %q)", strings.Join(PresetNames(), ", "), c.Pipeline.Preset)
	}

	tmpl := c.CommandTemplate()
	switch tmpl.OutputStyle {
	case OutputStyleArgument, OutputStyleStdout:
	default:
		return fmt.Errorf("pipeline.output_style must be %q or %q (got %q)", OutputStyleArgument, OutputStyleStdout, tmpl.OutputStyle)
	}

	hasPod5 := false
	hasOutput := false
	for _, arg := range tmpl.Args {
		for _, token := range placeholderPattern.FindAllString(arg, -1) {
			if _, ok := knownPlaceholders[token]; !ok {
				return fmt.Errorf("pipeline.args: unknown placeholder %s", token)
			}
			switch token {
			case PlaceholderPod5:
				hasPod5 = true
			case PlaceholderOutput:
				hasOutput = true
			}
		}
	}
	if !hasPod5 {
		return fmt.Errorf("pipeline.args must reference %s", PlaceholderPod5)
	}
	if tmpl.OutputStyle == OutputStyleArgument && !hasOutput {
		return fmt.Errorf("pipeline.args must reference %s when output_style is %q", PlaceholderOutput, OutputStyleArgument)
	}
	if tmpl.OutputStyle == OutputStyleStdout && hasOutput {
		return fmt.Errorf("pipeline.args must not reference %s when output_style is %q", PlaceholderOutput, OutputStyleStdout)
	}

	for key, name := range map[string]string{
		"pipeline.simplex_output": c.Pipeline.SimplexOutput,
		"pipeline.duplex_output":  c.Pipeline.DuplexOutput,
	} {
		if name == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%s must be a file name, not a path (got %q)", key, name)
		}
	}
	if c.Pipeline.MaxConcurrent < 0 {
		return errors.New("pipeline.max_concurrent must be >= 0")
	}
	if c.Pipeline.TimeoutMinutes < 0 {
		return errors.New("pipeline.timeout_minutes must be >= 0")
	}
	if c.Pipeline.KillGraceSeconds <= 0 {
		return errors.New("pipeline.kill_grace_seconds must be positive")
	}
	return nil
}
