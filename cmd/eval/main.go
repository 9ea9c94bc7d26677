// Command eval scores extracted outlines against known-good ones.
//
// Dataset file usage:
//
//	go run ./cmd/eval --dataset ./testdata/outlines.yaml
//
// Directory usage (documents and expected <name>.json side by side):
//
//	go run ./cmd/eval --docs ./sample/pdfs --expected ./sample/outputs --pass-f1 0.9
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/eval"
)

func main() {
	var (
		datasetPath = flag.String("dataset", "", "Path to dataset file (JSON or YAML)")
		docsDir     = flag.String("docs", "", "Directory of documents (with --expected)")
		expectedDir = flag.String("expected", "", "Directory of expected outline JSON files")
		category    = flag.String("category", "", "Only run cases of this category")
		passF1      = flag.Float64("pass-f1", eval.DefaultPassF1, "Heading F1 a case needs to pass")
		maxXGap     = flag.Float64("max-x-gap", 0, "Span grouping horizontal gap (default: engine default)")
		maxYGap     = flag.Float64("max-y-gap", 0, "Span grouping vertical gap (default: engine default)")
		maxTests    = flag.Int("max-tests", 0, "Max cases to run (0=all)")
		outputFile  = flag.String("output", "", "Path to write JSON report (default: inside run directory)")
	)
	flag.Parse()

	var (
		ds  eval.Dataset
		err error
	)
	switch {
	case *datasetPath != "":
		ds, err = eval.LoadDataset(*datasetPath)
	case *docsDir != "" && *expectedDir != "":
		ds, err = eval.DatasetFromDirs(*docsDir, *expectedDir, []string{"pdf", "json"})
	default:
		log.Fatal("--dataset or both --docs and --expected are required")
	}
	if err != nil {
		log.Fatalf("loading dataset: %v", err)
	}
	ds = filterCases(ds, *category, *maxTests)
	if len(ds.Cases) == 0 {
		log.Fatal("dataset has no cases to run")
	}

	runDir := createRunDir()
	fmt.Fprintf(os.Stderr, "Run directory: %s\n", runDir)
	logFile := setupLogTee(runDir)
	defer logFile.Close()

	cfg := gooutline.DefaultConfig()
	cfg.SkipStore = true
	cfg.MaxXGap = *maxXGap
	cfg.MaxYGap = *maxYGap
	engine, err := gooutline.New(cfg)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	meta := map[string]any{
		"dataset":    ds.Name,
		"cases":      len(ds.Cases),
		"pass_f1":    *passF1,
		"max_x_gap":  *maxXGap,
		"max_y_gap":  *maxYGap,
		"git_commit": gitCommit(),
		"go_version": runtime.Version(),
		"started_at": time.Now().Format(time.RFC3339),
	}
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ev := eval.NewEvaluator(engine)
	ev.SetPassThreshold(*passF1)
	report, err := ev.Run(ctx, ds)
	if err != nil {
		log.Fatalf("running evaluation: %v", err)
	}

	fmt.Println(eval.FormatReport(report))

	meta["finished_at"] = time.Now().Format(time.RFC3339)
	meta["passed"] = report.Passed
	meta["avg_f1"] = report.Metrics.AvgF1
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	reportPath := filepath.Join(runDir, "eval-report.json")
	if *outputFile != "" {
		reportPath = *outputFile
	}
	writeJSON(reportPath, report)
	fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)

	if report.Failed > 0 {
		os.Exit(2)
	}
}

// filterCases keeps the cases of one category (all when empty) and
// truncates to maxTests when positive.
func filterCases(ds eval.Dataset, category string, maxTests int) eval.Dataset {
	if category != "" {
		kept := ds.Cases[:0:0]
		for _, c := range ds.Cases {
			if strings.EqualFold(c.Category, category) {
				kept = append(kept, c)
			}
		}
		ds.Cases = kept
	}
	if maxTests > 0 && len(ds.Cases) > maxTests {
		ds.Cases = ds.Cases[:maxTests]
	}
	return ds
}

// createRunDir creates evals/runs/<timestamp>/ and returns its path.
func createRunDir() string {
	ts := time.Now().Format("2006-01-02_15-04-05")
	dir := filepath.Join("evals", "runs", ts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("creating run directory: %v", err)
	}
	return dir
}

// setupLogTee configures slog to write to both stderr and eval.log in the run dir.
func setupLogTee(runDir string) *os.File {
	logPath := filepath.Join(runDir, "eval.log")
	f, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("creating log file: %v", err)
	}
	w := io.MultiWriter(os.Stderr, f)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	return f
}

// gitCommit returns the current git HEAD short hash, or "unknown".
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// writeJSON marshals v to indented JSON and writes it to path.
func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("marshaling JSON for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("writing %s: %v", path, err)
	}
}
