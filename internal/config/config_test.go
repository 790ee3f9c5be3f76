package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := Default(Dir())
	if cfg.InclusionThreshold != def.InclusionThreshold || cfg.MaxListItems != 20 || cfg.TemplateVersion != "1.0" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysSpecifiedFields(t *testing.T) {
	p := writeConfig(t, "inclusion_threshold: 25\nextra_forbidden_terms: [\"slant\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InclusionThreshold != 25 {
		t.Errorf("threshold = %v, want 25", cfg.InclusionThreshold)
	}
	if len(cfg.ExtraForbiddenTerms) != 1 || cfg.ExtraForbiddenTerms[0] != "slant" {
		t.Errorf("unexpected extra terms %v", cfg.ExtraForbiddenTerms)
	}
	if cfg.MaxListItems != 20 {
		t.Error("unspecified field lost its default")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "max_list_items: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for _, content := range []string{
		"max_list_items: 0\n",
		"inclusion_threshold: 150\n",
		"length_factor_floor: 0\n",
		"log_format: xml\n",
	} {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestLoadNegativeLengthFactorFloor(t *testing.T) {
	cfg, err := Load(writeConfig(t, "length_factor_floor: -1\n"))
	if err != nil {
		t.Fatalf("negative floor should disable the floor: %v", err)
	}
	if cfg.LengthFactorFloor != -1 {
		t.Errorf("expected -1, got %v", cfg.LengthFactorFloor)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDB, "/tmp/x.db")
	t.Setenv(EnvDataDir, "/tmp/data")
	t.Setenv(EnvLedger, "/tmp/ledger.jsonl")

	cfg, err := Load(writeConfig(t, "db_path: /ignored.db\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.DataDir != "/tmp/data" || cfg.LedgerPath != "/tmp/ledger.jsonl" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestDefaultConfigYAMLParses(t *testing.T) {
	cfg := Default(t.TempDir())
	if err := yaml.Unmarshal([]byte(DefaultConfigYAML()), cfg); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default template invalid: %v", err)
	}
}
