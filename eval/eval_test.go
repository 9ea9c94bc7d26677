package eval

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/brunobiangulo/gooutline"
	"github.com/brunobiangulo/gooutline/outline"
)

func h(level outline.Level, text string, page int) outline.Heading {
	return outline.Heading{Level: level, Text: text, Page: page, Language: outline.ScriptEnglish}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore(t *testing.T) {
	want := &outline.Result{Title: "Annual Report", Outline: []outline.Heading{
		h(outline.LevelH1, "Annual Report", 1),
		h(outline.LevelH2, "1. Scope", 2),
		h(outline.LevelH2, "2. Method", 3),
		h(outline.LevelH3, "Appendix", 4),
	}}
	got := &outline.Result{Title: "ANNUAL  REPORT", Outline: []outline.Heading{
		h(outline.LevelH1, "Annual Report", 1),
		h(outline.LevelH3, "1.  Scope", 2),
		h(outline.LevelH2, "2. Method", 5),
		h(outline.LevelH2, "Footer text", 5),
	}}

	s := Score(got, want)
	if s.Matched != 3 || s.Extracted != 4 || s.Expected != 4 {
		t.Fatalf("counts = %+v", s)
	}
	if !almost(s.Precision, 0.75) || !almost(s.Recall, 0.75) || !almost(s.F1, 0.75) {
		t.Errorf("P/R/F1 = %v/%v/%v", s.Precision, s.Recall, s.F1)
	}
	if !almost(s.LevelAccuracy, 2.0/3) || !almost(s.PageAccuracy, 2.0/3) {
		t.Errorf("level/page = %v/%v", s.LevelAccuracy, s.PageAccuracy)
	}
	if !s.TitleMatch {
		t.Error("title should match after normalization")
	}
}

func TestScoreEdgeCases(t *testing.T) {
	empty := &outline.Result{Title: outline.UntitledDocument, Outline: []outline.Heading{}}
	s := Score(empty, empty)
	if s.F1 != 1 || s.Precision != 1 || s.Recall != 1 || !s.TitleMatch {
		t.Errorf("empty vs empty = %+v", s)
	}

	one := &outline.Result{Title: "X", Outline: []outline.Heading{h(outline.LevelH1, "X", 1)}}
	if s := Score(empty, one); s.F1 != 0 || s.Recall != 0 || s.TitleMatch {
		t.Errorf("empty vs one = %+v", s)
	}
	if s := Score(one, empty); s.F1 != 0 || s.Precision != 0 {
		t.Errorf("one vs empty = %+v", s)
	}

	// Duplicate headings match one-to-one.
	dup := &outline.Result{Title: "X", Outline: []outline.Heading{h(outline.LevelH1, "X", 1), h(outline.LevelH1, "X", 2)}}
	if s := Score(dup, one); s.Matched != 1 || !almost(s.Precision, 0.5) {
		t.Errorf("dup vs one = %+v", s)
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := map[string]string{
		"  Chapter   One ": "chapter one",
		"ＡＢＣ":              "abc",
		"ﬁnal":             "final",
		"第3章 概要":           "第3章 概要",
	}
	for in, want := range tests {
		if got := normalizeHeading(in); got != want {
			t.Errorf("normalizeHeading(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiffHeadings(t *testing.T) {
	want := &outline.Result{Outline: []outline.Heading{h(outline.LevelH1, "A", 1), h(outline.LevelH2, "B", 1)}}
	got := &outline.Result{Outline: []outline.Heading{h(outline.LevelH1, "a", 1), h(outline.LevelH2, "C", 1)}}
	missing, spurious := diffHeadings(got, want)
	if !reflect.DeepEqual(missing, []string{"B"}) || !reflect.DeepEqual(spurious, []string{"C"}) {
		t.Errorf("missing = %v, spurious = %v", missing, spurious)
	}
}

// writeCase writes a one-page word dump with a 24pt title and its expected
// outline, returning both paths.
func writeCase(t *testing.T, dir, name, title string) (string, string) {
	t.Helper()
	words := strings.Fields(title)
	var page []outline.Token
	x := 72.0
	for _, w := range words {
		page = append(page, outline.Token{Text: w, Size: 24, FontName: "Helvetica-Bold", X0: x, X1: x + 60, Top: 60, Bottom: 84})
		x += 63
	}
	x = 72
	for _, w := range strings.Fields("plain body text that fills the page nicely") {
		page = append(page, outline.Token{Text: w, Size: 10, FontName: "Helvetica", X0: x, X1: x + 20, Top: 120, Bottom: 130})
		x += 23
	}
	dump, _ := json.Marshal(map[string]any{"pages": [][]outline.Token{page}})
	doc := filepath.Join(dir, name+".json")
	if err := os.WriteFile(doc, dump, 0644); err != nil {
		t.Fatal(err)
	}

	want := outline.Result{Title: title, Outline: []outline.Heading{h(outline.LevelH1, title, 1)}}
	data, _ := json.Marshal(want)
	expDir := filepath.Join(dir, "expected")
	os.MkdirAll(expDir, 0755)
	exp := filepath.Join(expDir, name+".json")
	if err := os.WriteFile(exp, data, 0644); err != nil {
		t.Fatal(err)
	}
	return doc, exp
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	data := `name: sample
cases:
  - document: docs/a.pdf
    expected_file: expected/a.json
    category: reports
  - document: /abs/b.pdf
    expected:
      title: B
      outline: []
      metadata: {avg_font_size: 12, total_pages: 1}
`
	path := filepath.Join(dir, "dataset.yaml")
	os.WriteFile(path, []byte(data), 0644)

	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Name != "sample" || len(ds.Cases) != 2 {
		t.Fatalf("ds = %+v", ds)
	}
	if ds.Cases[0].Document != filepath.Join(dir, "docs", "a.pdf") || ds.Cases[0].ExpectedFile != filepath.Join(dir, "expected", "a.json") {
		t.Errorf("case 0 = %+v", ds.Cases[0])
	}
	if ds.Cases[1].Document != "/abs/b.pdf" || ds.Cases[1].Expected == nil || ds.Cases[1].Expected.Title != "B" {
		t.Errorf("case 1 = %+v", ds.Cases[1])
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeCase(t, dir, "good", "Annual Report")
	badDoc, _ := writeCase(t, dir, "wrong", "Budget Plan")
	// Overwrite the expectation so the extracted title no longer matches.
	os.WriteFile(filepath.Join(dir, "expected", "wrong.json"),
		[]byte(`{"title":"Other","outline":[{"level":"H1","text":"Other","page":1,"language":"en","font_size":24}],"metadata":{"avg_font_size":12,"total_pages":1}}`), 0644)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644)
	os.WriteFile(filepath.Join(dir, "expected", "broken.json"), []byte(`{"title":"X","outline":[]}`), 0644)

	ds, err := DatasetFromDirs(dir, filepath.Join(dir, "expected"), []string{"json"})
	if err != nil {
		t.Fatalf("DatasetFromDirs: %v", err)
	}
	if len(ds.Cases) != 3 {
		t.Fatalf("cases = %+v", ds.Cases)
	}

	cfg := gooutline.DefaultConfig()
	cfg.SkipStore = true
	engine, err := gooutline.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Close()

	report, err := NewEvaluator(engine).Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalTests != 3 || report.Passed != 1 || report.Failed != 2 {
		t.Errorf("report = %+v", report)
	}

	byDoc := make(map[string]TestResult)
	for _, r := range report.Results {
		byDoc[filepath.Base(r.Document)] = r
	}
	if r := byDoc["good.json"]; !r.Passed || r.Scores.F1 != 1 {
		t.Errorf("good = %+v", r)
	}
	if r := byDoc["broken.json"]; r.Error == "" {
		t.Errorf("broken = %+v", r)
	}
	if r := byDoc[filepath.Base(badDoc)]; r.Passed || !reflect.DeepEqual(r.Missing, []string{"Other"}) || !reflect.DeepEqual(r.Spurious, []string{"Budget Plan"}) {
		t.Errorf("wrong = %+v", r)
	}

	// Averages cover the two scored cases only.
	if !almost(report.Metrics.AvgF1, 0.5) || !almost(report.Metrics.TitleAccuracy, 0.5) {
		t.Errorf("metrics = %+v", report.Metrics)
	}

	text := FormatReport(report)
	for _, want := range []string{"=== Evaluation Report:", "[PASS]", "[FAIL]", "- missing:  Other", "+ spurious: Budget Plan"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
