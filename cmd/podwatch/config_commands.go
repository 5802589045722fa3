package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podwatch/internal/config"
	"podwatch/internal/notifications"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write an annotated sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := sampleTarget(path)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check %s: %w", target, statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Set run.root and notifications.recipients, export %s and %s, then run podwatch watch.\n",
				notifications.EnvUser, notifications.EnvPassword)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the file (default ~/.config/podwatch/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func sampleTarget(flag string) (string, error) {
	if strings.TrimSpace(flag) == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(strings.TrimSpace(flag))
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report whether watch can start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if err := readyToWatch(cfg); err != nil {
				fmt.Fprintf(out, "Not ready to watch: %v\n", err)
				return nil
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func readyToWatch(cfg *config.Config) error {
	if err := cfg.ValidateForWatch(); err != nil {
		return err
	}
	_, err := cfg.ResolveRun()
	return err
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, configRows(cfg)))
			return nil
		},
	}
}

func configRows(cfg *config.Config) [][]string {
	tmpl := cfg.CommandTemplate()
	orNone := func(v string) string {
		if v == "" {
			return "-"
		}
		return v
	}
	return [][]string{
		{"run.root", orNone(cfg.Run.Root)},
		{"run.mode", cfg.Run.Mode},
		{"run.model", cfg.Run.Model},
		{"run.kit", cfg.Run.Kit},
		{"run.tool", cfg.Run.Tool},
		{"run.run_date", orNone(cfg.Run.RunDate)},
		{"run.sample", orNone(cfg.Run.Sample)},
		{"run.amplification", orNone(cfg.Run.Amplification)},
		{"pipeline.preset", cfg.Pipeline.Preset},
		{"pipeline.args", strings.Join(tmpl.Args, " ")},
		{"pipeline.output_style", tmpl.OutputStyle},
		{"pipeline.simplex_output", cfg.OutputName(config.ModeSimplex)},
		{"pipeline.duplex_output", cfg.OutputName(config.ModeDuplex)},
		{"pipeline.max_concurrent", strconv.Itoa(cfg.Pipeline.MaxConcurrent)},
		{"pipeline.timeout", durationOrNone(cfg.DispatchTimeout().String(), cfg.Pipeline.TimeoutMinutes)},
		{"pipeline.kill_grace", cfg.KillGrace().String()},
		{"notifications.recipients", orNone(strings.Join(cfg.Notifications.Recipients, ", "))},
		{"notifications.smtp", fmt.Sprintf("%s:%d", cfg.Notifications.SMTPHost, cfg.Notifications.SMTPPort)},
		{"watch.backend", cfg.Watch.Backend},
		{"watch.poll_interval", cfg.PollInterval().String()},
		{"watch.start_order", cfg.Watch.StartOrder},
		{"watch.follow_symlinks", yesNo(cfg.Watch.FollowSymlinks)},
		{"watch.locator_levels", strconv.Itoa(cfg.Watch.LocatorLevels)},
		{"watch.rescan_on_device_add", yesNo(cfg.Watch.RescanOnDeviceAdd)},
		{"paths.log_dir", cfg.Paths.LogDir},
		{"logging", fmt.Sprintf("%s/%s, keep %d days", cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.RetentionDays)},
	}
}

func durationOrNone(value string, raw int) string {
	if raw <= 0 {
		return "none"
	}
	return value
}
