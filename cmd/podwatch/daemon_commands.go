package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podwatch/internal/daemonctl"
	"podwatch/internal/logs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a watcher is running for the experiment directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := daemonctl.Resolve(cfg)
			if err != nil {
				return err
			}
			running, pid, err := daemonctl.ProcessInfo(paths)
			if err != nil {
				return err
			}

			r := newReport(cmd.OutOrStdout())
			r.section("Watcher")
			switch {
			case running && pid > 0:
				r.status("Status", statusOK, fmt.Sprintf("running (pid %d)", pid))
			case running:
				r.status("Status", statusOK, "running")
			default:
				r.status("Status", statusWarn, "not running")
			}
			r.info("Root", paths.Root)
			r.info("Lock", paths.LockPath)
			r.info("Log", paths.LogPointer)
			r.info("Tool logs", paths.ToolLogsDir)
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the watcher for the experiment directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := daemonctl.Resolve(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(paths, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Watcher is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Watcher (pid %d) did not exit within %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(out, "Watcher (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 60*time.Second, "How long to wait for in-flight tools before killing the watcher")
	return cmd
}

func newRescanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Ask the running watcher to walk the experiment directory again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := daemonctl.Resolve(cfg)
			if err != nil {
				return err
			}
			pid, err := daemonctl.Rescan(paths)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rescan requested (pid %d)\n", pid)
			return nil
		},
	}
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the watcher log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := daemonctl.LogPointer(cfg)
			out := cmd.OutOrStdout()

			recent, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(recent) == 0 && offset == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No log at %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, logs.FollowOptions{Offset: offset}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
