// Package config loads the maat operator configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvDB      = "MAAT_DB"
	EnvDataDir = "MAAT_DATA_DIR"
	EnvLedger  = "MAAT_LEDGER"
)

// Config is the operator configuration.
type Config struct {
	DataDir             string   `yaml:"data_dir"`
	DBPath              string   `yaml:"db_path"`
	LedgerPath          string   `yaml:"ledger_path"`
	PolicyPath          string   `yaml:"policy_path"`
	InboxDir            string   `yaml:"inbox_dir"`
	StateDir            string   `yaml:"state_dir"`
	TemplateVersion     string   `yaml:"template_version"`
	InclusionThreshold  float64  `yaml:"inclusion_threshold"`
	MaxListItems        int      `yaml:"max_list_items"`
	LengthFactorFloor   float64  `yaml:"length_factor_floor"`
	ExtraForbiddenTerms []string `yaml:"extra_forbidden_terms"`
	GRPCPort            int      `yaml:"grpc_port"`
	InboxWorkers        int      `yaml:"inbox_workers"`
	LogLevel            string   `yaml:"log_level"`
	LogFormat           string   `yaml:"log_format"`
}

// Dir returns ~/.maat, or .maat when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".maat"
	}
	return filepath.Join(home, ".maat")
}

// DefaultPath is the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration rooted at base.
func Default(base string) *Config {
	return &Config{
		DataDir:            filepath.Join(base, "data"),
		DBPath:             filepath.Join(base, "maat.db"),
		LedgerPath:         filepath.Join(base, "ledger.jsonl"),
		PolicyPath:         filepath.Join(base, "policy.yaml"),
		InboxDir:           filepath.Join(base, "inbox"),
		StateDir:           filepath.Join(base, "state"),
		TemplateVersion:    "1.0",
		InclusionThreshold: 10,
		MaxListItems:       20,
		LengthFactorFloor:  1.0,
		GRPCPort:           7443,
		InboxWorkers:       2,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads the configuration at path. Empty path falls back to
// ~/.maat/config.yaml. A missing file yields defaults; invalid YAML is an
// error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default(Dir())
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLedger); v != "" {
		c.LedgerPath = v
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.InclusionThreshold < 0 || c.InclusionThreshold > 100 {
		return fmt.Errorf("config: inclusion_threshold must be within 0-100, got %v", c.InclusionThreshold)
	}
	if c.MaxListItems < 1 {
		return fmt.Errorf("config: max_list_items must be positive, got %d", c.MaxListItems)
	}
	if c.LengthFactorFloor == 0 {
		return fmt.Errorf("config: length_factor_floor must be positive, or negative for no floor")
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("config: grpc_port out of range: %d", c.GRPCPort)
	}
	if c.InboxWorkers < 1 {
		return fmt.Errorf("config: inbox_workers must be positive, got %d", c.InboxWorkers)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// DefaultConfigYAML returns a commented configuration for `maat init`.
func DefaultConfigYAML() string {
	return `# maat configuration
# Generated by: maat init
#
# Paths default to ~/.maat. MAAT_DB, MAAT_DATA_DIR and MAAT_LEDGER override
# db_path, data_dir and ledger_path.

# data_dir: ~/.maat/data
# db_path: ~/.maat/maat.db
# ledger_path: ~/.maat/ledger.jsonl

# Policy file evaluated by the gRPC and MCP surfaces when no case is given.
# policy_path: ~/.maat/policy.yaml

# Files dropped at <inbox_dir>/<case_id>/<type>/<file> are ingested by
# "maat watch" and "maat serve".
# inbox_dir: ~/.maat/inbox
# Ingested and rejected originals, plus the watcher PID lock.
# state_dir: ~/.maat/state
inbox_workers: 2

template_version: "1.0"

# Statement analysis
inclusion_threshold: 10    # minimum 0-100 category score surfaced as a flag
max_list_items: 20         # cap for each summary list
length_factor_floor: 1.0   # floor for the words/100 length factor; negative disables it

# Terms rejected in every report, in addition to the built-in list and the
# active policy's outputs.forbidden_terms.
extra_forbidden_terms: []

grpc_port: 7443

log_level: info            # debug | info | warn | error
log_format: text           # text | json
`
}
