package pipeline

import (
	"path/filepath"
	"strings"

	"podwatch/internal/config"
)

// Invocation is a fully rendered external tool command.
type Invocation struct {
	Binary      string
	Args        []string
	OutputPath  string
	OutputStyle string
}

// CommandLine returns the binary followed by its arguments.
func (i Invocation) CommandLine() []string {
	return append([]string{i.Binary}, i.Args...)
}

// ModeFlag returns the mode switch passed to the flag-style CLI.
func ModeFlag(mode string) string {
	return "--" + mode
}

// Subcommand returns the tool subcommand used by the subcommand-style CLI.
func Subcommand(mode string) string {
	if mode == config.ModeDuplex {
		return "duplex"
	}
	return "basecaller"
}

// Render substitutes run values into tmpl. The output file always lands next
// to the marker. Tokens that render to an empty string are dropped.
func Render(run config.MonitoredRun, tmpl config.CommandTemplate, outputName, markerPath, pod5Folder string) Invocation {
	output := filepath.Join(filepath.Dir(markerPath), outputName)
	replacer := strings.NewReplacer(
		config.PlaceholderModel, run.Model,
		config.PlaceholderModeFlag, ModeFlag(run.Mode),
		config.PlaceholderMode, run.Mode,
		config.PlaceholderSubcommand, Subcommand(run.Mode),
		config.PlaceholderKit, run.Kit,
		config.PlaceholderPod5, pod5Folder,
		config.PlaceholderOutput, output,
	)
	args := make([]string, 0, len(tmpl.Args))
	for _, token := range tmpl.Args {
		if rendered := replacer.Replace(token); rendered != "" {
			args = append(args, rendered)
		}
	}
	return Invocation{
		Binary:      run.Tool,
		Args:        args,
		OutputPath:  output,
		OutputStyle: tmpl.OutputStyle,
	}
}
