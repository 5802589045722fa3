package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podwatch/internal/daemonrun"
	"podwatch/internal/services"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the experiment directory and basecall each finished run",
		Long: "Watch monitors the experiment directory for final_summary*.txt files. For each\n" +
			"new file it e-mails the recipients, locates the run's pod5 folder, and starts\n" +
			"the basecaller once. It runs in the foreground until interrupted; send SIGHUP\n" +
			"to rescan the tree.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForWatch(); err != nil {
				return services.Wrap(services.ErrConfiguration, "cli", "watch", "", err)
			}
			if verbose {
				logLevel = "debug"
			}
			if err := daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel, Development: verbose}); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	ctx.overrides.register(cmd)
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging with source locations")
	return cmd
}
