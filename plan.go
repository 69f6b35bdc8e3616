package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/stagegen/internal/pipeline"
	"github.com/phobologic/stagegen/internal/toon"
)

func (a *app) planCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved call plan without writing anything",
		Long: `plan scans the crate like generate, then prints the planned calls and the
module tree instead of Rust source. The default TOON output is compact enough
to paste into a prompt; yaml is easier to feed to other tools.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "toon" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want toon or yaml)", format)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			report := res.Report(cfg)

			if format == "yaml" {
				data, err := yaml.Marshal(report)
				if err != nil {
					return fmt.Errorf("encoding plan: %w", err)
				}
				_, err = a.stdout.Write(data)
				return err
			}
			_, err = fmt.Fprintln(a.stdout, toon.Encode(report))
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toon", "output format: toon or yaml")
	return cmd
}
