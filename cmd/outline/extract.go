package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/report"
)

var extractForce bool

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Print the outline of one or more documents",
	Long: `Extract reads each file and prints its outline to stdout.

Examples:
  outline extract report.pdf
  outline extract -o markdown chapter1.pdf chapter2.pdf
  outline extract --force --no-store words.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		var opts []gooutline.ExtractOption
		if extractForce {
			opts = append(opts, gooutline.WithForce())
		}

		var errs []error
		for _, path := range args {
			ext, err := engine.Extract(cmd.Context(), path, opts...)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			if err := report.Encode(cmd.OutOrStdout(), format, ext.Result); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract even if the file is unchanged")
}
