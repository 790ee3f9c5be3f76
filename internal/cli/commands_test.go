package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/config"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/store"
)

// useTempConfig points every command at a fresh directory.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := cfg
	cfg = config.Default(dir)
	t.Cleanup(func() { cfg = prev })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func createCase(t *testing.T) string {
	t.Helper()
	e, err := openEnv()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	c, err := e.store.CreateCase(context.Background(), "State v. Moe", "WA", "")
	if err != nil {
		t.Fatal(err)
	}
	return c.CaseID
}

func TestReportGenerateFlow(t *testing.T) {
	dir := useTempConfig(t)
	caseID := createCase(t)

	policyFile := writeFile(t, dir, "p.yaml", policy.DefaultDocumentYAML())
	if err := runPolicyAdd(nil, []string{caseID, policyFile}); err != nil {
		t.Fatalf("policy add: %v", err)
	}
	transcript := writeFile(t, dir, "t.txt", "The clerk read exhibit 7. [UNRESOLVED: exhibit 8 not produced]")
	if err := runIngest(nil, []string{caseID, store.TypeTranscript, transcript}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := runReportGenerate(nil, []string{caseID}); err != nil {
		t.Fatalf("report generate: %v", err)
	}

	e, err := openEnv()
	if err != nil {
		t.Fatal(err)
	}
	rows, err := e.store.ListPackets(context.Background(), caseID)
	e.Close()
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one packet row, got %d (%v)", len(rows), err)
	}

	if err := runAuditVerify(nil, []string{rows[0].PacketPath}); err != nil {
		t.Errorf("audit verify: %v", err)
	}
	if err := runLedgerVerify(nil, nil); err != nil {
		t.Errorf("ledger verify: %v", err)
	}
	if err := runReportShow(nil, []string{caseID}); err != nil {
		t.Errorf("report show: %v", err)
	}
}

func TestReportGenerateWithoutPolicy(t *testing.T) {
	useTempConfig(t)
	caseID := createCase(t)

	err := runReportGenerate(nil, []string{caseID})
	if err == nil || err.Error() != "ruleset_not_found" {
		t.Fatalf("expected ruleset_not_found, got %v", err)
	}
}

func TestPolicyAddRejectsInvalidDocument(t *testing.T) {
	dir := useTempConfig(t)
	caseID := createCase(t)

	bad := writeFile(t, dir, "bad.yaml", "name: x\nplatforms:\n  twitter:\n    notification_risk: extreme\n")
	err := runPolicyAdd(nil, []string{caseID, bad})
	if err == nil || err.Error() != "invalid_policy" {
		t.Fatalf("expected invalid_policy, got %v", err)
	}
}

func TestFirewallCheck(t *testing.T) {
	dir := useTempConfig(t)
	firewallCase = ""
	firewallJSON = false

	clean := writeFile(t, dir, "clean.txt", "Exhibit 4 was entered at 10:02.")
	if err := runFirewallCheck(nil, []string{clean}); err != nil {
		t.Errorf("clean text: %v", err)
	}

	dirty := writeFile(t, dir, "dirty.txt", "The delay was intended.")
	if err := runFirewallCheck(nil, []string{dirty}); !errors.Is(err, errViolations) {
		t.Errorf("expected violations error, got %v", err)
	}
}

func TestPolicyInitWritesLoadableDocument(t *testing.T) {
	dir := useTempConfig(t)
	policyOutput = filepath.Join(dir, "out", "policy.yaml")
	policyForce = false
	defer func() { policyOutput = "" }()

	if err := runPolicyInit(nil, nil); err != nil {
		t.Fatalf("policy init: %v", err)
	}
	if _, err := policy.LoadFile(policyOutput, ""); err != nil {
		t.Fatalf("generated policy does not load: %v", err)
	}
	if err := runPolicyInit(nil, nil); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestPolicyDiffCase(t *testing.T) {
	dir := useTempConfig(t)
	caseID := createCase(t)
	policyDiffCase = caseID
	defer func() { policyDiffCase = "" }()

	if err := runPolicyDiff(nil, nil); err == nil {
		t.Fatal("expected error with no revisions")
	}

	first := writeFile(t, dir, "a.yaml", policy.DefaultDocumentYAML())
	second := writeFile(t, dir, "b.yaml", "name: narrow\nplatforms:\n  twitter:\n    passive_view_public: true\n    notification_risk: low\n")
	for _, p := range []string{first, second} {
		if err := runPolicyAdd(nil, []string{caseID, p}); err != nil {
			t.Fatal(err)
		}
	}
	if err := runPolicyDiff(nil, nil); err != nil {
		t.Fatalf("policy diff: %v", err)
	}
}

func TestLedgerVerifyDetectsTamper(t *testing.T) {
	dir := useTempConfig(t)
	path := filepath.Join(dir, "ledger.jsonl")

	l, err := audit.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a1", "a2"} {
		if err := l.Record(audit.LedgerEntry{AuditID: id, CaseID: "c"}); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()

	if err := runLedgerVerify(nil, []string{path}); err != nil {
		t.Fatalf("intact ledger: %v", err)
	}

	data, _ := os.ReadFile(path)
	data[len(data)/4] ^= 1
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := runLedgerVerify(nil, []string{path}); err == nil {
		t.Fatal("expected tampered ledger to fail")
	}
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseBound(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBound(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseBound(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	defer func() { cfg = prev }()

	configPath = writeFile(t, dir, "config.yaml", "grpc_port: 9000\nlog_format: json\n")
	logLevel = "debug"
	defer func() { configPath, logLevel = "", "" }()

	if err := loadConfig(); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GRPCPort != 9000 || cfg.LogFormat != "json" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config %+v", cfg)
	}

	logLevel = "loud"
	if err := loadConfig(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
