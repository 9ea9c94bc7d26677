package gooutline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/brunobiangulo/gooutline/outline"
	"github.com/brunobiangulo/gooutline/report"
)

// Config holds all configuration for the outline engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.gooutline/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set: "home" (default) or "local".
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// SkipStore runs without a database. Extractions are never cached and
	// the document listing operations return ErrStoreDisabled.
	SkipStore bool `json:"skip_store" yaml:"skip_store" mapstructure:"skip_store"`

	// OutputDir receives one file per extracted document and format.
	// Empty disables file output.
	OutputDir string   `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	Formats   []string `json:"formats" yaml:"formats" mapstructure:"formats"` // json, yaml, markdown

	// Span grouping
	MaxXGap float64 `json:"max_x_gap" yaml:"max_x_gap" mapstructure:"max_x_gap"`
	MaxYGap float64 `json:"max_y_gap" yaml:"max_y_gap" mapstructure:"max_y_gap"`

	// Concurrency bounds parallel documents in ExtractAll (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// ValidateOutput checks every result against the outline JSON schema
	// before it is stored or written.
	ValidateOutput bool `json:"validate_output" yaml:"validate_output" mapstructure:"validate_output"`

	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"` // debug, info, warn, error
}

// DefaultConfig returns a Config with sensible defaults.
// Database is stored in ~/.gooutline/gooutline.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:      "gooutline",
		StorageDir:  "home",
		Formats:     []string{string(report.FormatJSON)},
		MaxXGap:     outline.DefaultMaxXGap,
		MaxYGap:     outline.DefaultMaxYGap,
		Concurrency: 4,
		LogLevel:    "info",
	}
}

// LoadConfig reads configuration from a JSON or YAML file (chosen by
// extension) on top of DefaultConfig. GOOUTLINE_<KEY> environment variables
// override file values. An empty path loads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("db_name", def.DBName)
	v.SetDefault("storage_dir", def.StorageDir)
	v.SetDefault("skip_store", def.SkipStore)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("formats", def.Formats)
	v.SetDefault("max_x_gap", def.MaxXGap)
	v.SetDefault("max_y_gap", def.MaxYGap)
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("validate_output", def.ValidateOutput)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("GOOUTLINE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: config file not found: %s", ErrInvalidConfig, path)
			}
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		return fmt.Errorf("%w: storage_dir must be home or local, got %q", ErrInvalidConfig, c.StorageDir)
	}
	if c.MaxXGap < 0 || c.MaxYGap < 0 {
		return fmt.Errorf("%w: span gaps must not be negative", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	for _, f := range c.Formats {
		if _, err := report.ParseFormat(f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "gooutline"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".gooutline", name+".db")
	}
}

// outputFormats parses Formats, defaulting to JSON.
func (c *Config) outputFormats() []report.Format {
	if len(c.Formats) == 0 {
		return []report.Format{report.FormatJSON}
	}
	formats := make([]report.Format, 0, len(c.Formats))
	seen := make(map[report.Format]bool)
	for _, s := range c.Formats {
		f, err := report.ParseFormat(s)
		if err != nil || seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats
}
