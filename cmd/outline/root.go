package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/report"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	noStore      bool
)

var rootCmd = &cobra.Command{
	Use:   "outline",
	Short: "Derive document outlines from PDF text layout",
	Long: `outline reads PDF documents (or JSON word dumps) and infers a title
and an H1/H2/H3 heading hierarchy from font sizes, scripts and
heading patterns.

Outlines are catalogued in a local SQLite database so unchanged files
are not processed twice. Use --no-store to run without it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (JSON or YAML)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json, yaml or markdown",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level override: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().BoolVar(
		&noStore, "no-store", false, "run without the outline database",
	)

	rootCmd.AddCommand(extractCmd, batchCmd, watchCmd, listCmd, showCmd,
		searchCmd, deleteCmd, refreshCmd, versionCmd)
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (gooutline.Config, error) {
	cfg, err := gooutline.LoadConfig(cfgFile)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if noStore {
		cfg.SkipStore = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	return cfg, nil
}

// openEngine loads configuration, lets mod adjust it and creates the engine.
func openEngine(mod func(*gooutline.Config)) (gooutline.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mod != nil {
		mod(&cfg)
	}
	return gooutline.New(cfg)
}

// printValue writes v to w in the selected output format. Markdown falls
// back to YAML for anything that is not an outline.
func printValue(w io.Writer, v any) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == report.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
