package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration file location relative to the project directory
const (
	DirName  = ".searchflow"
	FileName = "config.yaml"
)

// ColumnsConfig names the property columns feature derivation reads
type ColumnsConfig struct {
	// Term lists the columns searched in order for search text
	Term []string `yaml:"term"`

	// Count lists the columns searched in order for the reported result count
	Count []string `yaml:"count"`
}

// LedgerConfig controls the run history database
type LedgerConfig struct {
	// Enabled records runs and batches in the ledger
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite file; empty means <data_dir>/ledger.db
	Path string `yaml:"path"`
}

// Config represents searchflow configuration options
type Config struct {
	// InputDir is scanned for dated input exports
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the exported artifacts and the run summary
	OutputDir string `yaml:"output_dir"`

	// DataDir holds the event store
	DataDir string `yaml:"data_dir"`

	// Timezone decides calendar dates and hours of events (IANA name)
	Timezone string `yaml:"timezone"`

	// SourceTimezone interprets input timestamps that carry no offset
	SourceTimezone string `yaml:"source_timezone"`

	// Format is the export encoding (parquet or csv)
	Format string `yaml:"format"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written; empty disables file logs
	LogDir string `yaml:"log_dir"`

	// Columns overrides the property columns used for terms and counts
	Columns ColumnsConfig `yaml:"columns"`

	// Ledger contains run history configuration
	Ledger LedgerConfig `yaml:"ledger"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		InputDir:       "input",
		OutputDir:      "output",
		DataDir:        "data",
		Timezone:       "UTC",
		SourceTimezone: "UTC",
		Format:         "parquet",
		LogLevel:       "info",
		LogDir:         filepath.Join(DirName, "logs"),
		Columns: ColumnsConfig{
			Term:  []string{"CP_searchQuery", "searchQuery", "query"},
			Count: []string{"CP_totalResultCount", "totalResultCount", "resultCount"},
		},
		Ledger: LedgerConfig{Enabled: true},
	}
}

// LoadConfig loads configuration from the specified file path.
// Keys present in the file override defaults, including explicit empty
// values. A missing file yields the defaults without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A second pass tells which keys were actually present
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	set := func(section map[string]interface{}, key string) bool {
		_, ok := section[key]
		return ok
	}

	scalars := []struct {
		key string
		dst *string
		src string
	}{
		{"input_dir", &cfg.InputDir, fileCfg.InputDir},
		{"output_dir", &cfg.OutputDir, fileCfg.OutputDir},
		{"data_dir", &cfg.DataDir, fileCfg.DataDir},
		{"timezone", &cfg.Timezone, fileCfg.Timezone},
		{"source_timezone", &cfg.SourceTimezone, fileCfg.SourceTimezone},
		{"format", &cfg.Format, fileCfg.Format},
		{"log_level", &cfg.LogLevel, fileCfg.LogLevel},
		{"log_dir", &cfg.LogDir, fileCfg.LogDir},
	}
	for _, s := range scalars {
		if set(raw, s.key) {
			*s.dst = s.src
		}
	}

	if columns, ok := raw["columns"].(map[string]interface{}); ok {
		if set(columns, "term") {
			cfg.Columns.Term = fileCfg.Columns.Term
		}
		if set(columns, "count") {
			cfg.Columns.Count = fileCfg.Columns.Count
		}
	}
	if ledger, ok := raw["ledger"].(map[string]interface{}); ok {
		if set(ledger, "enabled") {
			cfg.Ledger.Enabled = fileCfg.Ledger.Enabled
		}
		if set(ledger, "path") {
			cfg.Ledger.Path = fileCfg.Ledger.Path
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .searchflow/config.yaml in the specified directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, FileName))
}

// Flags carries CLI overrides; nil fields were not given
type Flags struct {
	InputDir  *string
	OutputDir *string
	DataDir   *string
	Timezone  *string
	Format    *string
	LogLevel  *string
	LogDir    *string
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(f Flags) {
	pairs := []struct {
		flag *string
		dst  *string
	}{
		{f.InputDir, &c.InputDir},
		{f.OutputDir, &c.OutputDir},
		{f.DataDir, &c.DataDir},
		{f.Timezone, &c.Timezone},
		{f.Format, &c.Format},
		{f.LogLevel, &c.LogLevel},
		{f.LogDir, &c.LogDir},
	}
	for _, p := range pairs {
		if p.flag != nil {
			*p.dst = *p.flag
		}
	}
}

// Resolve makes relative directories absolute against base
func (c *Config) Resolve(base string) {
	for _, p := range []*string{&c.InputDir, &c.OutputDir, &c.DataDir, &c.LogDir, &c.Ledger.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Location loads the target time zone
func (c *Config) Location() (*time.Location, error) {
	return loadLocation("timezone", c.Timezone)
}

// SourceLocation loads the zone for timestamps without an offset
func (c *Config) SourceLocation() (*time.Location, error) {
	return loadLocation("source_timezone", c.SourceTimezone)
}

func loadLocation(key, name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, name, err)
	}
	return loc, nil
}

// StorePath returns the event store file inside DataDir
func (c *Config) StorePath(fileName string) string {
	return filepath.Join(c.DataDir, fileName)
}

// LedgerPath returns the ledger database path, or "" when disabled
func (c *Config) LedgerPath() string {
	if !c.Ledger.Enabled {
		return ""
	}
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.DataDir, "ledger.db")
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	dirs := []struct{ key, value string }{
		{"input_dir", c.InputDir},
		{"output_dir", c.OutputDir},
		{"data_dir", c.DataDir},
	}
	for _, d := range dirs {
		if strings.TrimSpace(d.value) == "" {
			return fmt.Errorf("%s cannot be empty", d.key)
		}
	}

	switch strings.ToLower(c.Format) {
	case "parquet", "csv":
	default:
		return fmt.Errorf("invalid format %q, must be one of: parquet, csv", c.Format)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.SourceLocation(); err != nil {
		return err
	}

	if len(c.Columns.Term) == 0 {
		return fmt.Errorf("columns.term must name at least one column")
	}
	if len(c.Columns.Count) == 0 {
		return fmt.Errorf("columns.count must name at least one column")
	}
	return nil
}
