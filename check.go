package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/stagegen/internal/model"
	"github.com/phobologic/stagegen/internal/pipeline"
)

var errStale = errors.New("generated routine is out of date")

func (a *app) checkCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fail if the generated file differs from what generate would write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			path := pipeline.OutputPath(cfg, out, a.getenv("OUT_DIR"))
			if path == "" {
				return errors.New("check needs --out or OUT_DIR to know which file to compare")
			}

			res, err := pipeline.Run(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			stale, err := pipeline.Stale(model.Artifact{Path: path, Text: res.Text})
			if err != nil {
				return err
			}
			if stale {
				return fmt.Errorf("%w: %s (run stagegen generate)", errStale, path)
			}
			fmt.Fprintf(a.stdout, "%s is up to date (%s)\n", path, pipeline.Summary(res.Plan))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "generated file to compare (default: $OUT_DIR/<output>)")
	return cmd
}
