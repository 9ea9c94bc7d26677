package eval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/outline"
)

// DefaultPassF1 is the heading F1 a case needs to pass.
const DefaultPassF1 = 0.8

// Evaluator runs datasets against an outline engine.
type Evaluator struct {
	engine gooutline.Engine
	passF1 float64
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(engine gooutline.Engine) *Evaluator {
	return &Evaluator{engine: engine, passF1: DefaultPassF1}
}

// SetPassThreshold overrides the F1 a case needs to pass.
func (e *Evaluator) SetPassThreshold(f1 float64) {
	e.passF1 = f1
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	TotalTests      int                         `json:"total_tests"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []TestResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// AggregateMetrics holds averaged metrics across scored cases.
type AggregateMetrics struct {
	AvgPrecision     float64 `json:"avg_precision"`
	AvgRecall        float64 `json:"avg_recall"`
	AvgF1            float64 `json:"avg_f1"`
	AvgLevelAccuracy float64 `json:"avg_level_accuracy"`
	AvgPageAccuracy  float64 `json:"avg_page_accuracy"`
	TitleAccuracy    float64 `json:"title_accuracy"`
}

// TestResult holds the result of a single case.
type TestResult struct {
	Document  string `json:"document"`
	Category  string `json:"category,omitempty"`
	Title     string `json:"title,omitempty"`
	Scores    Scores `json:"scores"`
	Passed    bool   `json:"passed"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`

	Missing  []string `json:"missing,omitempty"`  // expected headings not extracted
	Spurious []string `json:"spurious,omitempty"` // extracted headings not expected
}

type accumulator struct {
	sum AggregateMetrics
	n   int
}

func (a *accumulator) add(s Scores) {
	a.n++
	a.sum.AvgPrecision += s.Precision
	a.sum.AvgRecall += s.Recall
	a.sum.AvgF1 += s.F1
	a.sum.AvgLevelAccuracy += s.LevelAccuracy
	a.sum.AvgPageAccuracy += s.PageAccuracy
	if s.TitleMatch {
		a.sum.TitleAccuracy++
	}
}

func (a *accumulator) mean() AggregateMetrics {
	if a.n == 0 {
		return AggregateMetrics{}
	}
	n := float64(a.n)
	return AggregateMetrics{
		AvgPrecision:     a.sum.AvgPrecision / n,
		AvgRecall:        a.sum.AvgRecall / n,
		AvgF1:            a.sum.AvgF1 / n,
		AvgLevelAccuracy: a.sum.AvgLevelAccuracy / n,
		AvgPageAccuracy:  a.sum.AvgPageAccuracy / n,
		TitleAccuracy:    a.sum.TitleAccuracy / n,
	}
}

// Run extracts every case in order and scores it. Extraction errors fail
// the case and are excluded from the averages.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset, opts ...gooutline.ExtractOption) (*Report, error) {
	start := time.Now()
	report := &Report{
		Dataset:         dataset.Name,
		TotalTests:      len(dataset.Cases),
		CategoryMetrics: make(map[string]AggregateMetrics),
		Results:         make([]TestResult, 0, len(dataset.Cases)),
	}

	var all accumulator
	cats := make(map[string]*accumulator)

	for i, tc := range dataset.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := e.runTest(ctx, tc, opts...)
		report.Results = append(report.Results, result)

		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		if result.Error != "" {
			status = "ERROR"
		}
		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Cases)),
			"status", status,
			"f1", fmt.Sprintf("%.2f", result.Scores.F1),
			"elapsed_ms", result.ElapsedMs,
			"document", filepath.Base(tc.Document))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		if result.Error != "" {
			continue
		}

		all.add(result.Scores)
		if tc.Category != "" {
			acc, ok := cats[tc.Category]
			if !ok {
				acc = &accumulator{}
				cats[tc.Category] = acc
			}
			acc.add(result.Scores)
		}
	}

	report.Metrics = all.mean()
	for cat, acc := range cats {
		report.CategoryMetrics[cat] = acc.mean()
	}
	report.RunTime = time.Since(start)
	return report, nil
}

func (e *Evaluator) runTest(ctx context.Context, tc TestCase, opts ...gooutline.ExtractOption) TestResult {
	testStart := time.Now()
	result := TestResult{Document: tc.Document, Category: tc.Category}

	want, err := tc.expected()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	ext, err := e.engine.Extract(ctx, tc.Document, opts...)
	result.ElapsedMs = time.Since(testStart).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	got := ext.Result
	result.Title = got.Title
	result.Scores = Score(got, want)
	result.Passed = result.Scores.F1 >= e.passF1 && result.Scores.TitleMatch
	result.Missing, result.Spurious = diffHeadings(got, want)
	return result
}

// diffHeadings lists expected headings that were not extracted and
// extracted headings that were not expected.
func diffHeadings(got, want *outline.Result) (missing, spurious []string) {
	remaining := make(map[string]int)
	for _, w := range want.Outline {
		remaining[normalizeHeading(w.Text)]++
	}
	for _, g := range got.Outline {
		key := normalizeHeading(g.Text)
		if remaining[key] > 0 {
			remaining[key]--
			continue
		}
		spurious = append(spurious, g.Text)
	}
	for _, w := range want.Outline {
		key := normalizeHeading(w.Text)
		if remaining[key] > 0 {
			remaining[key]--
			missing = append(missing, w.Text)
		}
	}
	return missing, spurious
}

// FormatReport renders a human-readable summary of r.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalTests, r.Passed, passRate(r.Passed, r.TotalTests), r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	fmt.Fprintf(&b, "  Precision:       %.2f\n", r.Metrics.AvgPrecision)
	fmt.Fprintf(&b, "  Recall:          %.2f\n", r.Metrics.AvgRecall)
	fmt.Fprintf(&b, "  F1:              %.2f\n", r.Metrics.AvgF1)
	fmt.Fprintf(&b, "  Level Accuracy:  %.2f\n", r.Metrics.AvgLevelAccuracy)
	fmt.Fprintf(&b, "  Page Accuracy:   %.2f\n", r.Metrics.AvgPageAccuracy)
	fmt.Fprintf(&b, "  Title Accuracy:  %.2f\n\n", r.Metrics.TitleAccuracy)

	// Per-category breakdown (sorted for deterministic output)
	if len(r.CategoryMetrics) > 0 {
		cats := make([]string, 0, len(r.CategoryMetrics))
		for cat := range r.CategoryMetrics {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range cats {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s] P=%.2f R=%.2f F1=%.2f Level=%.2f Page=%.2f Title=%.2f\n",
				cat, m.AvgPrecision, m.AvgRecall, m.AvgF1, m.AvgLevelAccuracy, m.AvgPageAccuracy, m.TitleAccuracy)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, filepath.Base(res.Document))
		if res.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
			continue
		}
		s := res.Scores
		fmt.Fprintf(&b, "  P=%.2f R=%.2f F1=%.2f Level=%.2f Page=%.2f Title=%v  (%dms)\n",
			s.Precision, s.Recall, s.F1, s.LevelAccuracy, s.PageAccuracy, s.TitleMatch, res.ElapsedMs)
		for _, m := range res.Missing {
			fmt.Fprintf(&b, "  - missing:  %s\n", truncate(m, 80))
		}
		for _, sp := range res.Spurious {
			fmt.Fprintf(&b, "  + spurious: %s\n", truncate(sp, 80))
		}
	}

	return b.String()
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
