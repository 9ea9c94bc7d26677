package gooutline

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/brunobiangulo/gooutline/report"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxXGap != 5 || cfg.MaxYGap != 2 || cfg.Concurrency != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gooutline.yaml")
	data := `db_path: /tmp/outlines.db
output_dir: out
formats: [json, yaml]
max_x_gap: 8
concurrency: 2
validate_output: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/outlines.db" || cfg.OutputDir != "out" || cfg.Concurrency != 2 || !cfg.ValidateOutput {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxXGap != 8 || cfg.MaxYGap != 2 {
		t.Errorf("gaps = %v, %v", cfg.MaxXGap, cfg.MaxYGap)
	}
	if !reflect.DeepEqual(cfg.Formats, []string{"json", "yaml"}) {
		t.Errorf("formats = %v", cfg.Formats)
	}
	if cfg.DBName != "gooutline" {
		t.Errorf("db_name default lost: %q", cfg.DBName)
	}
}

func TestLoadConfigJSONWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gooutline.json")
	if err := os.WriteFile(path, []byte(`{"concurrency": 2, "log_level": "debug"}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOUTLINE_CONCURRENCY", "8")
	t.Setenv("GOOUTLINE_SKIP_STORE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("concurrency = %d, want env override 8", cfg.Concurrency)
	}
	if !cfg.SkipStore {
		t.Error("skip_store env override ignored")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"storage dir", func(c *Config) { c.StorageDir = "cloud" }},
		{"negative gap", func(c *Config) { c.MaxYGap = -1 }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -2 }},
		{"format", func(c *Config) { c.Formats = []string{"json", "pdf"} }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBPath: "/data/x.db"}
	if got := cfg.resolveDBPath(); got != "/data/x.db" {
		t.Errorf("explicit path = %q", got)
	}

	cfg = Config{DBName: "docs", StorageDir: "local"}
	if got := cfg.resolveDBPath(); got != "docs.db" {
		t.Errorf("local = %q", got)
	}

	cfg = Config{}
	got := cfg.resolveDBPath()
	if !strings.HasSuffix(got, filepath.Join(".gooutline", "gooutline.db")) && got != "gooutline.db" {
		t.Errorf("home = %q", got)
	}
}

func TestOutputFormats(t *testing.T) {
	cfg := Config{}
	if got := cfg.outputFormats(); !reflect.DeepEqual(got, []report.Format{report.FormatJSON}) {
		t.Errorf("empty = %v", got)
	}
	cfg.Formats = []string{"md", "yaml", "markdown"}
	want := []report.Format{report.FormatMarkdown, report.FormatYAML}
	if got := cfg.outputFormats(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		cfg := Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
