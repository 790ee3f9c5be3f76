package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/ingest"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/store"
)

type fixture struct {
	gen    *Generator
	store  *store.Store
	ingest *ingest.Ingester
	ledger string
	data   string
	caseID string
}

func newFixture(t *testing.T, withPolicy bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "maat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	ledgerPath := filepath.Join(dir, "ledger.jsonl")
	ledger, err := audit.Open(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })

	ctx := context.Background()
	c, err := s.CreateCase(ctx, "State v. Doe", "CA", "Hon. A")
	if err != nil {
		t.Fatal(err)
	}
	if withPolicy {
		doc, err := policy.Parse([]byte(policy.DefaultDocumentYAML()), "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.AddPolicy(ctx, c.CaseID, doc); err != nil {
			t.Fatal(err)
		}
	}

	data := filepath.Join(dir, "data")
	gen := New(Config{
		DataDir: data,
		Store:   s,
		Builder: &audit.Builder{Dir: data, Recorder: s, Ledger: ledger},
	})
	return &fixture{
		gen:    gen,
		store:  s,
		ingest: &ingest.Ingester{DataDir: data, Store: s},
		ledger: ledgerPath,
		data:   data,
		caseID: c.CaseID,
	}
}

func (f *fixture) add(t *testing.T, artifactType, ext, content string) *store.Artifact {
	t.Helper()
	a, err := f.ingest.Reader(context.Background(), f.caseID, artifactType, ext, strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *fixture) packets(t *testing.T) []string {
	t.Helper()
	m, _ := filepath.Glob(filepath.Join(f.data, f.caseID, "audit", "*"))
	return m
}

func TestGenerateCommitsReportAndPacket(t *testing.T) {
	f := newFixture(t, true)
	f.add(t, store.TypeTranscript, ".txt", "The judge said wait. [UNRESOLVED: missing exhibit 4] I'm fine, everyone goes through this.")
	f.add(t, store.TypeVenue, ".json", `{"venue":"County","themes":[{"theme":"media","salience":4}]}`)
	f.add(t, store.TypeSJQ, ".csv", "juror_label,litigation_history_declared\nJ1,no\n")
	f.add(t, store.TypeVoirDire, ".jsonl", `{"juror_label":"J1","question_id":"Q1","question_text":"News?","answer_text":"some"}`+"\n")
	f.add(t, store.TypePublicRecords, ".csv", "juror_label,field,value\nJ1,litigation_history,2019 suit\n")
	f.add(t, store.TypePublicSocial, ".json", `[
		{"platform":"twitter","url":"u1","public_text":"local news","tags":["media"]},
		{"platform":"linkedin","url":"u2","public_text":"career","tags":["work"]}]`)

	res, err := f.gen.Generate(context.Background(), f.caseID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ArtifactCount != 6 {
		t.Errorf("artifact count = %d, want 6", res.ArtifactCount)
	}
	if len(res.Platforms) != 3 {
		t.Errorf("expected 3 platform decisions, got %d", len(res.Platforms))
	}

	md, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"- missing exhibit 4\n",
		"indicates history",
		`"platform": "linkedin"`,
		"## Statement Consistency Summary",
	} {
		if !strings.Contains(string(md), want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(string(md), "career") {
		t.Error("denied platform content leaked into report")
	}

	pr := audit.VerifyPacket(res.PacketPath)
	if !pr.Valid {
		t.Fatalf("packet invalid: %s", pr.Error)
	}
	if pr.Inputs != 6 {
		t.Errorf("packet inputs = %d, want 6", pr.Inputs)
	}
	m, err := audit.ReadManifest(res.PacketPath)
	if err != nil {
		t.Fatal(err)
	}
	if m.Report.Path != res.ReportPath || m.Report.SHA256 != audit.HashBytes(md) {
		t.Error("manifest does not attest to the published report")
	}
	if m.PolicySHA256 != res.PolicySHA256 {
		t.Error("manifest policy hash mismatch")
	}

	if v := audit.Verify(f.ledger); !v.Valid || v.Lines != 1 {
		t.Errorf("ledger chain: %+v", v)
	}
	rows, err := f.store.ListPackets(context.Background(), f.caseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].AuditID != res.AuditID {
		t.Errorf("unexpected ledger rows %+v", rows)
	}

	if tmps, _ := filepath.Glob(filepath.Join(filepath.Dir(res.ReportPath), "*.tmp")); len(tmps) != 0 {
		t.Errorf("staged report left behind: %v", tmps)
	}
}

func TestGenerateFirewallAbortsWithoutWrites(t *testing.T) {
	f := newFixture(t, true)
	f.add(t, store.TypeTranscript, ".txt", "Notes. [UNRESOLVED: records were manipulated]")

	_, err := f.gen.Generate(context.Background(), f.caseID)
	var cv *ComplianceViolation
	if !errors.As(err, &cv) {
		t.Fatalf("expected ComplianceViolation, got %v", err)
	}
	if len(cv.Violations) == 0 || cv.Violations[0].String() != "forbidden_causation_language" {
		t.Errorf("unexpected violations %v", cv.Violations)
	}

	out := Classify(err)
	if out.Status != 422 || out.Code != CodeFirewallViolation {
		t.Errorf("unexpected outcome %+v", out)
	}

	if p := f.packets(t); len(p) != 0 {
		t.Errorf("archive written despite violation: %v", p)
	}
	if _, err := os.Stat(f.gen.ReportPath(f.caseID)); !os.IsNotExist(err) {
		t.Error("report published despite violation")
	}
	rows, _ := f.store.ListPackets(context.Background(), f.caseID)
	if len(rows) != 0 {
		t.Error("ledger row written despite violation")
	}
}

func TestGeneratePolicyForbiddenTerm(t *testing.T) {
	f := newFixture(t, true)
	doc, err := policy.Parse([]byte("name: strict\noutputs:\n  forbidden_terms: [\"exhibit\"]\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.AddPolicy(context.Background(), f.caseID, doc); err != nil {
		t.Fatal(err)
	}
	f.add(t, store.TypeTranscript, ".txt", "[UNRESOLVED: exhibit 9]")

	_, err = f.gen.Generate(context.Background(), f.caseID)
	var cv *ComplianceViolation
	if !errors.As(err, &cv) {
		t.Fatalf("expected ComplianceViolation, got %v", err)
	}
	if cv.Violations[0].String() != "forbidden_term:exhibit" {
		t.Errorf("unexpected violation %s", cv.Violations[0])
	}
}

func TestGenerateConfigurationErrors(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.gen.Generate(context.Background(), "missing")
	if out := Classify(err); out.Code != CodeCaseNotFound || out.Status != 404 {
		t.Errorf("missing case: %+v", out)
	}

	_, err = f.gen.Generate(context.Background(), f.caseID)
	if out := Classify(err); out.Code != CodeRulesetNotFound || !out.ClientError() {
		t.Errorf("missing policy: %+v", out)
	}
}

func TestGenerateInvalidArtifact(t *testing.T) {
	f := newFixture(t, true)
	f.add(t, store.TypeVenue, ".json", "{not json")

	_, err := f.gen.Generate(context.Background(), f.caseID)
	if out := Classify(err); out.Code != CodeInvalidArtifact || out.Status != 422 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if p := f.packets(t); len(p) != 0 {
		t.Errorf("archive written for invalid artifact: %v", p)
	}
}

func TestGenerateTamperedArtifactIsIntegrityError(t *testing.T) {
	f := newFixture(t, true)
	a := f.add(t, store.TypeTranscript, ".txt", "exhibit A was entered")
	if err := os.WriteFile(a.Path, []byte("exhibit B was entered"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := f.gen.Generate(context.Background(), f.caseID)
	var ie *audit.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	out := Classify(err)
	if out.Status != 500 || out.Code != CodeIntegrity {
		t.Errorf("unexpected outcome %+v", out)
	}
	if strings.Contains(out.Message, a.Path) || strings.Contains(out.Message, a.SHA256) {
		t.Error("integrity message leaks internal detail")
	}
	if p := f.packets(t); len(p) != 0 {
		t.Errorf("archive left behind: %v", p)
	}
	if _, err := os.Stat(f.gen.ReportPath(f.caseID)); !os.IsNotExist(err) {
		t.Error("report published after integrity failure")
	}
}

func TestGenerateSameCaseSerialized(t *testing.T) {
	f := newFixture(t, true)
	f.add(t, store.TypeTranscript, ".txt", "exhibit A")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gen.Generate(context.Background(), f.caseID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if v := audit.Verify(f.ledger); !v.Valid || v.Lines != len(errs) {
		t.Errorf("ledger chain after concurrent generations: %+v", v)
	}
	if n := f.gen.lockCount(); n != 0 {
		t.Errorf("expected case locks released, %d left", n)
	}
}

func TestCaseLockReleased(t *testing.T) {
	g := New(Config{})
	unlockA := g.lock("a")
	unlockB := g.lock("b")
	if n := g.lockCount(); n != 2 {
		t.Fatalf("expected 2 live locks, got %d", n)
	}

	acquired := make(chan struct{})
	go func() {
		unlock := g.lock("a")
		close(acquired)
		unlock()
	}()
	unlockA()
	<-acquired
	unlockB()

	// The waiter may still be releasing; its refcount drops under g.mu.
	for i := 0; i < 100 && g.lockCount() != 0; i++ {
		time.Sleep(time.Millisecond)
	}
	if n := g.lockCount(); n != 0 {
		t.Errorf("expected all case locks pruned, %d left", n)
	}
}

func TestEvaluatePlatform(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	r, err := f.gen.EvaluatePlatform(ctx, f.caseID, "twitter")
	if err != nil || !r.Allowed {
		t.Errorf("twitter: %+v, %v", r, err)
	}

	r, err = f.gen.EvaluatePlatform(ctx, f.caseID, "linkedin")
	if err != nil || r.Allowed || r.Reason != policy.ReasonBlockedByOverride {
		t.Errorf("linkedin: %+v, %v", r, err)
	}

	r, err = f.gen.EvaluatePlatform(ctx, f.caseID, "myspace")
	if out := Classify(err); out.Code != CodePlatformNotConfigured {
		t.Errorf("unconfigured platform: %+v", out)
	}
	if r.Allowed {
		t.Error("unconfigured platform allowed")
	}

	_, err = f.gen.EvaluatePlatform(ctx, "missing", "twitter")
	if out := Classify(err); out.Status != 404 {
		t.Errorf("missing case: %+v", out)
	}
}

func TestClassifyUnknownError(t *testing.T) {
	out := Classify(errors.New("disk on fire at /secret/path"))
	if out.Status != 500 || out.Code != CodeInternal || strings.Contains(out.Message, "/secret") {
		t.Errorf("unexpected outcome %+v", out)
	}
	if ok := Classify(nil); ok.Status != 200 {
		t.Errorf("nil error: %+v", ok)
	}
}
