package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"podwatch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that this host is ready to watch and basecall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			r := newReport(cmd.OutOrStdout())
			r.section("Configuration")
			configDetail := ctx.configPath
			if !ctx.configSeen {
				configDetail += " (not found; defaults used)"
			}
			r.info("Config file", configDetail)
			r.info("Mode", fmt.Sprintf("%s / %s / %s", cfg.Run.Mode, cfg.Run.Model, cfg.Run.Kit))
			r.info("Preset", cfg.Pipeline.Preset)
			r.blank()

			r.section("Preflight")
			results := preflight.RunAll(cmd.Context(), cfg, os.Getenv)
			for _, res := range results {
				r.status(res.Name, preflightKind(res), res.Detail)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}

func preflightKind(res preflight.Result) statusKind {
	switch {
	case res.Passed:
		return statusOK
	case res.Advisory:
		return statusWarn
	default:
		return statusError
	}
}
