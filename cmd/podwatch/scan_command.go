package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"podwatch/internal/pipeline"
	"podwatch/internal/pod5"
	"podwatch/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List markers under the experiment directory and what would run for each",
		Long: "Scan walks the experiment directory once, the same way watch does at startup,\n" +
			"and prints each final_summary*.txt with its pod5 folder and the basecaller\n" +
			"command that would run. Nothing is e-mailed or executed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			run, err := cfg.ResolveRun()
			if err != nil {
				return err
			}

			events, scanErrs := scanner.Scan(cmd.Context(), run.Root, scanner.Options{
				FollowSymlinks: cfg.Watch.FollowSymlinks,
			})
			dispatcher := pipeline.New(cfg, nil)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root: %s\n", run.Root)
			if len(events) == 0 {
				fmt.Fprintln(out, "No final_summary*.txt files found")
			} else {
				rows := make([][]string, 0, len(events))
				for _, evt := range events {
					rel := relativeTo(run.Root, evt.Path)
					folder, err := pod5.Locate(evt.Path, cfg.Watch.LocatorLevels)
					if err != nil {
						if !errors.Is(err, pod5.ErrNotFound) {
							return err
						}
						rows = append(rows, []string{rel, "not found", "skipped"})
						continue
					}
					inv := dispatcher.Preview(run, evt.Path, folder)
					rows = append(rows, []string{rel, relativeTo(run.Root, folder), strings.Join(inv.CommandLine(), " ")})
				}
				fmt.Fprintln(out, renderTable([]string{"Marker", "Pod5 folder", "Command"}, rows))
			}
			for _, err := range scanErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %v\n", err)
			}
			return nil
		},
	}
	ctx.overrides.register(cmd)
	return cmd
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
