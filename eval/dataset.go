package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/gooutline/outline"
)

// Dataset is a collection of documents with known outlines.
type Dataset struct {
	Name  string     `json:"name" yaml:"name"`
	Cases []TestCase `json:"cases" yaml:"cases"`
}

// TestCase pairs a document with its expected outline. The outline is given
// inline or as a path to a JSON file in the output format.
type TestCase struct {
	Document     string          `json:"document" yaml:"document"`
	ExpectedFile string          `json:"expected_file,omitempty" yaml:"expected_file,omitempty"`
	Expected     *outline.Result `json:"expected,omitempty" yaml:"expected,omitempty"`
	Category     string          `json:"category,omitempty" yaml:"category,omitempty"` // e.g. "ja", "forms", "reports"
}

// LoadDataset reads a dataset file (JSON or YAML by extension). Relative
// document and expectation paths are resolved against the file's directory.
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}

	var ds Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ds)
	default:
		err = json.Unmarshal(data, &ds)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("decoding dataset: %w", err)
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	base := filepath.Dir(path)
	for i := range ds.Cases {
		c := &ds.Cases[i]
		c.Document = resolve(base, c.Document)
		if c.ExpectedFile != "" {
			c.ExpectedFile = resolve(base, c.ExpectedFile)
		}
	}
	return ds, nil
}

// DatasetFromDirs pairs every document in docsDir with the expected outline
// of the same base name in expectedDir (report.pdf -> report.json).
// Documents without an expectation are skipped.
func DatasetFromDirs(docsDir, expectedDir string, formats []string) (Dataset, error) {
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading documents: %w", err)
	}
	want := make(map[string]bool, len(formats))
	for _, f := range formats {
		want[f] = true
	}

	ds := Dataset{Name: filepath.Base(docsDir)}
	for _, e := range entries {
		name := e.Name()
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if e.IsDir() || !want[ext] {
			continue
		}
		expected := filepath.Join(expectedDir, strings.TrimSuffix(name, filepath.Ext(name))+".json")
		if _, err := os.Stat(expected); err != nil {
			continue
		}
		ds.Cases = append(ds.Cases, TestCase{
			Document:     filepath.Join(docsDir, name),
			ExpectedFile: expected,
		})
	}
	return ds, nil
}

// expected returns the case's expected outline, loading it if needed.
func (c TestCase) expected() (*outline.Result, error) {
	if c.Expected != nil {
		return c.Expected, nil
	}
	if c.ExpectedFile == "" {
		return nil, fmt.Errorf("case %s has no expected outline", c.Document)
	}
	data, err := os.ReadFile(c.ExpectedFile)
	if err != nil {
		return nil, fmt.Errorf("reading expected outline: %w", err)
	}
	var res outline.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding expected outline: %w", err)
	}
	return &res, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
