package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podwatch/internal/config"
	"podwatch/internal/notifications"
)

var newNotifier = func(cfg *config.Config) notifications.Service {
	return notifications.NewService(cfg)
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(cfg.Notifications.Recipients) == 0 {
				return errors.New("no recipients configured (set notifications.recipients or pass --recipients)")
			}
			run, err := cfg.ResolveRun()
			if err != nil {
				run = config.MonitoredRun{
					ConfiguredRoot: cfg.Run.Root,
					Root:           cfg.Run.Root,
					Mode:           cfg.Run.Mode,
					Model:          cfg.Run.Model,
					Kit:            cfg.Run.Kit,
					Recipients:     cfg.Notifications.Recipients,
				}
			}
			if err := newNotifier(cfg).TestNotification(cmd.Context(), run); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %d recipient(s)\n", len(run.Recipients))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&ctx.overrides.recipients, "recipients", "", "Comma-separated notification recipients")
	return cmd
}
