package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/report"
)

var (
	batchInput   string
	batchOutput  string
	batchSummary string
	batchFormats []string
	batchForce   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every document in a directory",
	Long: `Batch processes all supported files in --input and writes one outline
file per document and format into --output.

Examples:
  outline batch --input /app/input --output /app/output
  outline batch --input docs --output out --format json --format markdown
  outline batch --input docs --output out --summary out/summary.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(func(c *gooutline.Config) {
			c.OutputDir = batchOutput
			if len(batchFormats) > 0 {
				c.Formats = batchFormats
			}
		})
		if err != nil {
			return err
		}
		defer engine.Close()

		paths, err := gooutline.FindDocuments(batchInput, engine.Formats())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(paths) == 0 {
			fmt.Fprintf(out, "No documents found in %s\n", batchInput)
			return nil
		}

		var opts []gooutline.ExtractOption
		if batchForce {
			opts = append(opts, gooutline.WithForce())
		}
		results := engine.ExtractAll(cmd.Context(), paths, opts...)
		failed := printBatch(out, results)

		if batchSummary != "" {
			if err := report.WriteWorkbook(batchSummary, summaryEntries(results)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Summary written to %s\n", batchSummary)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "input", "directory containing documents")
	batchCmd.Flags().StringVar(&batchOutput, "output", "output", "directory for outline files")
	batchCmd.Flags().StringVar(&batchSummary, "summary", "", "write an XLSX summary workbook to this path")
	batchCmd.Flags().StringSliceVar(&batchFormats, "format", nil, "output formats (default from config)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "re-extract unchanged files")
}

// printBatch writes one line per document and a closing count. It returns
// the number of failures.
func printBatch(w io.Writer, results []gooutline.BatchResult) int {
	failed := 0
	for _, r := range results {
		name := filepath.Base(r.Path)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", name, r.Err)
			continue
		}
		res := r.Extraction.Result
		note := ""
		if r.Extraction.Cached {
			note = " (unchanged)"
		}
		fmt.Fprintf(w, "ok   %s: %q, %d headings%s\n", name, res.Title, len(res.Outline), note)
	}
	fmt.Fprintf(w, "Processed %d of %d documents\n", len(results)-failed, len(results))
	return failed
}

func summaryEntries(results []gooutline.BatchResult) []report.Entry {
	entries := make([]report.Entry, len(results))
	for i, r := range results {
		entries[i] = report.Entry{Source: filepath.Base(r.Path), Err: r.Err}
		if r.Extraction != nil {
			entries[i].Result = r.Extraction.Result
		}
	}
	return entries
}
