// Package pipeline runs one report generation for a case: analyze the latest
// artifacts, render, gate through the firewall, then commit the audit packet
// and publish the report.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppiankov/maat/internal/analyze"
	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/firewall"
	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/report"
	"github.com/ppiankov/maat/internal/store"
	"github.com/ppiankov/maat/internal/vocab"
)

// DefaultTemplateVersion is recorded in every manifest unless configured.
const DefaultTemplateVersion = "1.0"

// ReportName is the published report file under <data>/<case_id>/report.
const ReportName = "latest_report.md"

// Store is the subset of the case store a generation reads.
type Store interface {
	GetCase(ctx context.Context, caseID string) (*store.Case, error)
	ActivePolicy(ctx context.Context, caseID string) (*store.PolicyRecord, error)
	LatestArtifact(ctx context.Context, caseID, artifactType string) (*store.Artifact, error)
}

// Config configures a Generator.
type Config struct {
	DataDir         string
	TemplateVersion string
	Store           Store
	Builder         *audit.Builder
	Adapter         *vocab.Adapter
	ExtraForbidden  []string
	Logger          *slog.Logger
}

// Result summarizes a committed generation.
type Result struct {
	CaseID        string          `json:"case_id"`
	AuditID       string          `json:"audit_id"`
	ReportPath    string          `json:"report_path"`
	PacketPath    string          `json:"audit_zip"`
	PolicySHA256  string          `json:"ruleset_sha256"`
	InputsSHA256  string          `json:"inputs_sha256"`
	ArtifactCount int             `json:"artifact_count"`
	Platforms     []policy.Result `json:"platform_decisions"`
}

// Generator runs generations. Calls for the same case are serialized;
// different cases run concurrently.
type Generator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*caseLock
}

// caseLock is dropped from the map once no generation holds or waits on it.
type caseLock struct {
	sync.Mutex
	refs int
}

// New creates a Generator.
func New(cfg Config) *Generator {
	if cfg.TemplateVersion == "" {
		cfg.TemplateVersion = DefaultTemplateVersion
	}
	if cfg.Adapter == nil {
		cfg.Adapter = vocab.New(vocab.Config{Logger: cfg.Logger})
	}
	return &Generator{cfg: cfg, logger: logging.OrDiscard(cfg.Logger), locks: make(map[string]*caseLock)}
}

func (g *Generator) lock(caseID string) func() {
	g.mu.Lock()
	l, ok := g.locks[caseID]
	if !ok {
		l = &caseLock{}
		g.locks[caseID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(g.locks, caseID)
		}
		g.mu.Unlock()
	}
}

// lockCount reports the number of cases with a live lock.
func (g *Generator) lockCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}

// ReportPath returns the published report location for a case.
func (g *Generator) ReportPath(caseID string) string {
	return filepath.Join(g.cfg.DataDir, caseID, "report", ReportName)
}

// loaded is everything a generation reads before rendering.
type loaded struct {
	c         *store.Case
	pol       *store.PolicyRecord
	artifacts []store.Artifact
}

func (g *Generator) load(ctx context.Context, caseID string) (*loaded, error) {
	c, err := g.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	pol, err := g.activePolicy(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var artifacts []store.Artifact
	for _, t := range store.ArtifactTypes {
		a, err := g.cfg.Store.LatestArtifact(ctx, caseID, t)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: load %s artifact: %w", t, err)
		}
		artifacts = append(artifacts, *a)
	}
	return &loaded{c: c, pol: pol, artifacts: artifacts}, nil
}

// Render analyzes the case and returns the report markdown without gating
// or persisting it.
func (g *Generator) Render(ctx context.Context, caseID string) (string, error) {
	l, err := g.load(ctx, caseID)
	if err != nil {
		return "", err
	}
	return g.render(l)
}

func (g *Generator) render(l *loaded) (string, error) {
	byType := make(map[string]store.Artifact, len(l.artifacts))
	for _, a := range l.artifacts {
		byType[a.Type] = a
	}
	read := func(t string) ([]byte, bool, error) {
		a, ok := byType[t]
		if !ok {
			return nil, false, nil
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, false, fmt.Errorf("pipeline: read %s artifact: %w", t, err)
		}
		return data, true, nil
	}
	invalid := func(t string, err error) error {
		return &ConfigurationError{Code: CodeInvalidArtifact, Detail: t, Err: err}
	}

	var s report.Sections

	if data, ok, err := read(store.TypeTranscript); err != nil {
		return "", err
	} else if ok {
		text := string(data)
		f := analyze.Transcript(text)
		s.Forensics = &f
		sum := g.cfg.Adapter.Summarize(text)
		if sum.Degraded() {
			g.logger.Warn("statement analysis unavailable", "case_id", l.c.CaseID)
		}
		s.Statement = &sum
	}

	if data, ok, err := read(store.TypeVenue); err != nil {
		return "", err
	} else if ok {
		v, err := analyze.Venue(data)
		if err != nil {
			return "", invalid(store.TypeVenue, err)
		}
		s.Venue = v
	}

	var sjq []analyze.Row
	if data, ok, err := read(store.TypeSJQ); err != nil {
		return "", err
	} else if ok {
		if sjq, err = analyze.LoadCSV(bytes.NewReader(data)); err != nil {
			return "", invalid(store.TypeSJQ, err)
		}
	}

	if data, ok, err := read(store.TypeVoirDire); err != nil {
		return "", err
	} else if ok {
		events, err := analyze.LoadVoirDire(bytes.NewReader(data))
		if err != nil {
			return "", invalid(store.TypeVoirDire, err)
		}
		d := analyze.ResponseDistribution(sjq, events)
		s.Distribution = &d
	}

	if data, ok, err := read(store.TypePublicRecords); err != nil {
		return "", err
	} else if ok && sjq != nil {
		records, err := analyze.LoadCSV(bytes.NewReader(data))
		if err != nil {
			return "", invalid(store.TypePublicRecords, err)
		}
		s.Disclosure = analyze.DisclosureFlags(sjq, records)
	}

	if data, ok, err := read(store.TypePublicSocial); err != nil {
		return "", err
	} else if ok {
		doc := l.pol.Document
		permit := func(platform string) (bool, string) {
			r := policy.Evaluate(doc, platform)
			return r.Allowed, string(r.Reason)
		}
		social, err := analyze.Social(data, permit)
		if err != nil {
			return "", invalid(store.TypePublicSocial, err)
		}
		s.Social = social
	}

	meta := report.Meta{
		CaseID:       l.c.CaseID,
		Name:         l.c.Name,
		Jurisdiction: l.c.Jurisdiction,
		Judge:        l.c.Judge,
	}
	return report.Render(meta, s), nil
}

// Firewall returns the gate for a policy: defaults, the policy's forbidden
// terms and configured extras.
func (g *Generator) Firewall(doc *policy.Document) *firewall.Firewall {
	var terms []string
	if doc != nil {
		terms = doc.Rules.Outputs.ForbiddenTerms
	}
	return firewall.New(terms, g.cfg.ExtraForbidden)
}

// CaseFirewall returns the gate for the case's active policy.
func (g *Generator) CaseFirewall(ctx context.Context, caseID string) (*firewall.Firewall, error) {
	pol, err := g.casePolicy(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return g.Firewall(pol.Document), nil
}

func (g *Generator) getCase(ctx context.Context, caseID string) (*store.Case, error) {
	c, err := g.cfg.Store.GetCase(ctx, caseID)
	if errors.Is(err, store.ErrCaseNotFound) {
		return nil, &ConfigurationError{Code: CodeCaseNotFound, Detail: caseID, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: load case: %w", err)
	}
	return c, nil
}

// casePolicy resolves the case first so a missing case is reported as such.
func (g *Generator) casePolicy(ctx context.Context, caseID string) (*store.PolicyRecord, error) {
	if _, err := g.getCase(ctx, caseID); err != nil {
		return nil, err
	}
	return g.activePolicy(ctx, caseID)
}

func (g *Generator) activePolicy(ctx context.Context, caseID string) (*store.PolicyRecord, error) {
	pol, err := g.cfg.Store.ActivePolicy(ctx, caseID)
	if errors.Is(err, store.ErrPolicyNotFound) {
		return nil, &ConfigurationError{Code: CodeRulesetNotFound, Detail: caseID, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: load policy: %w", err)
	}
	return pol, nil
}

// Generate produces the report and audit packet for a case. Nothing is
// written unless the rendered report passes the firewall.
func (g *Generator) Generate(ctx context.Context, caseID string) (*Result, error) {
	unlock := g.lock(caseID)
	defer unlock()

	l, err := g.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	md, err := g.render(l)
	if err != nil {
		return nil, err
	}

	if vs := g.Firewall(l.pol.Document).Validate(md); len(vs) > 0 {
		g.logger.Warn("report rejected by firewall",
			"case_id", caseID, "violations", firewall.Codes(vs))
		return nil, &ComplianceViolation{Violations: vs}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := g.ReportPath(caseID)
	staged, err := stage(filepath.Dir(final), md)
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged)

	inputs := make([]audit.Input, len(l.artifacts))
	for i, a := range l.artifacts {
		inputs[i] = audit.Input{Path: a.Path, SHA256: a.SHA256}
	}

	pkt, err := g.cfg.Builder.Build(ctx, audit.Request{
		CaseID:          caseID,
		TemplateVersion: g.cfg.TemplateVersion,
		PolicyHash:      l.pol.SHA256,
		Inputs:          inputs,
		ReportPath:      final,
		ReportSource:    staged,
	})
	if err != nil {
		g.logger.Error("audit packet failed", "case_id", caseID, "err", err)
		return nil, err
	}

	if err := os.Rename(staged, final); err != nil {
		return nil, fmt.Errorf("pipeline: publish report: %w", err)
	}

	g.logger.Info("report generated",
		"case_id", caseID, "audit_id", pkt.Manifest.AuditID,
		"policy_sha256", l.pol.SHA256, "artifacts", len(l.artifacts))

	return &Result{
		CaseID:        caseID,
		AuditID:       pkt.Manifest.AuditID,
		ReportPath:    final,
		PacketPath:    pkt.Path,
		PolicySHA256:  l.pol.SHA256,
		InputsSHA256:  pkt.Manifest.InputsSHA256,
		ArtifactCount: len(l.artifacts),
		Platforms:     policy.EvaluateAll(l.pol.Document),
	}, nil
}

// stage writes md to a temp file in dir.
func stage(dir, md string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("pipeline: create report dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".report_*.md.tmp")
	if err != nil {
		return "", fmt.Errorf("pipeline: stage report: %w", err)
	}
	if _, err := f.WriteString(md); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("pipeline: stage report: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("pipeline: stage report: %w", err)
	}
	return f.Name(), nil
}

// EvaluatePlatform evaluates one platform against the case's active policy.
// An unconfigured platform yields the deny result and a ConfigurationError.
func (g *Generator) EvaluatePlatform(ctx context.Context, caseID, platform string) (policy.Result, error) {
	pol, err := g.casePolicy(ctx, caseID)
	if err != nil {
		return policy.Result{}, err
	}
	r := policy.Evaluate(pol.Document, platform)
	if r.Reason == policy.ReasonNotConfigured {
		return r, &ConfigurationError{Code: CodePlatformNotConfigured, Detail: platform}
	}
	return r, nil
}
