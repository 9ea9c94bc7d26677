package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gooutline/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		docs, err := engine.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		if f := cmd.Flag("output"); f != nil && f.Changed {
			return printValue(cmd.OutOrStdout(), docs)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tPAGES\tTITLE\tFILE")
		for _, d := range docs {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", d.ID, d.Status, d.TotalPages, d.Title, d.Filename)
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print the stored outline of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id: %s", args[0])
		}
		format, err := report.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		res, err := engine.Outline(cmd.Context(), id)
		if err != nil {
			return err
		}
		return report.Encode(cmd.OutOrStdout(), format, res)
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find stored headings containing QUERY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		matches, err := engine.SearchHeadings(cmd.Context(), args[0], searchLimit)
		if err != nil {
			return err
		}
		if f := cmd.Flag("output"); f != nil && f.Changed {
			return printValue(cmd.OutOrStdout(), matches)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DOC\tPAGE\tLEVEL\tHEADING\tFILE")
		for _, m := range matches {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", m.DocumentID, m.Page, m.Level, m.Text, m.Filename)
		}
		return tw.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a document from the catalogue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id: %s", args[0])
		}
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %d\n", id)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-extract catalogued documents whose files changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		results, err := engine.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		printBatch(cmd.OutOrStdout(), results)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "maximum number of matches")
}
