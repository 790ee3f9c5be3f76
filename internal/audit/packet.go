package audit

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/maat/internal/logging"
)

// Archive entry names.
const (
	ManifestEntry = "manifest.json"
	HashesEntry   = "hashes.json"
	ReportEntry   = "report.md"
	inputsPrefix  = "inputs/"
)

// Input is one artifact bound into a packet. SHA256 is optional on a
// request; when set, the file must still hash to it.
type Input struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Entry  string `json:"entry,omitempty"`
}

// ReportRef identifies the rendered report a packet attests to.
type ReportRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Manifest binds a policy version, every input and the report.
type Manifest struct {
	AuditID         string    `json:"audit_id"`
	CaseID          string    `json:"case_id"`
	TemplateVersion string    `json:"template_version"`
	PolicySHA256    string    `json:"policy_sha256"`
	InputsSHA256    string    `json:"inputs_sha256"`
	OutputsSHA256   string    `json:"outputs_sha256"`
	CreatedAt       string    `json:"created_at"`
	Inputs          []Input   `json:"inputs"`
	Report          ReportRef `json:"report"`
}

// Hashes is the standalone digest summary stored next to the manifest.
type Hashes struct {
	PolicySHA256  string   `json:"policy_sha256"`
	InputsSHA256  string   `json:"inputs_sha256"`
	OutputsSHA256 string   `json:"outputs_sha256"`
	Inputs        []string `json:"inputs"`
}

func (m Manifest) hashes() Hashes {
	h := Hashes{
		PolicySHA256:  m.PolicySHA256,
		InputsSHA256:  m.InputsSHA256,
		OutputsSHA256: m.OutputsSHA256,
		Inputs:        make([]string, len(m.Inputs)),
	}
	for i, in := range m.Inputs {
		h.Inputs[i] = in.SHA256
	}
	return h
}

// Record is the durable ledger row for one packet.
type Record struct {
	AuditID         string `json:"audit_id"`
	CaseID          string `json:"case_id"`
	TemplateVersion string `json:"template_version"`
	PolicySHA256    string `json:"policy_sha256"`
	InputsSHA256    string `json:"inputs_sha256"`
	OutputsSHA256   string `json:"outputs_sha256"`
	PacketPath      string `json:"packet_path"`
	CreatedAt       string `json:"created_at"`
}

// Recorder persists ledger rows.
type Recorder interface {
	RecordPacket(ctx context.Context, rec Record) error
	// DeletePacket removes a row whose packet failed to commit.
	DeletePacket(ctx context.Context, auditID string) error
}

// Request describes one packet.
type Request struct {
	CaseID          string
	TemplateVersion string
	PolicyHash      string
	Inputs          []Input
	// ReportPath is the published report location recorded in the manifest.
	ReportPath string
	// ReportSource is the file hashed and archived. Empty means ReportPath.
	ReportSource string
}

// InputsFromPaths wraps plain paths as inputs without expected digests.
func InputsFromPaths(paths ...string) []Input {
	out := make([]Input, len(paths))
	for i, p := range paths {
		out[i] = Input{Path: p}
	}
	return out
}

// Packet is a committed archive.
type Packet struct {
	Path     string   `json:"path"`
	Manifest Manifest `json:"manifest"`
}

// Builder writes packets under <Dir>/<case_id>/audit.
type Builder struct {
	Dir      string
	Recorder Recorder // optional sqlite ledger
	Ledger   *Log     // optional JSONL chain
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

func (b *Builder) logger() *slog.Logger {
	return logging.OrDiscard(b.Logger)
}

// PacketDir returns the directory holding packets for a case.
func (b *Builder) PacketDir(caseID string) string {
	return filepath.Join(b.Dir, caseID, "audit")
}

// Build hashes every input and the report, writes the archive atomically and
// records the ledger row. Missing inputs or digest mismatches return an
// *IntegrityError and leave no archive on disk.
func (b *Builder) Build(ctx context.Context, req Request) (*Packet, error) {
	if err := validComponent(req.CaseID); err != nil {
		return nil, fmt.Errorf("audit: case id: %w", err)
	}
	if req.ReportPath == "" {
		return nil, errors.New("audit: report path is required")
	}
	src := req.ReportSource
	if src == "" {
		src = req.ReportPath
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewID != nil {
		newID = b.NewID
	}

	inputs := make([]Input, len(req.Inputs))
	digests := make([]string, len(req.Inputs))
	for i, in := range req.Inputs {
		sum, err := HashFile(in.Path)
		if err != nil {
			return nil, integrityErr("hash input", "input %d (%s): %w", i, filepath.Base(in.Path), err)
		}
		if in.SHA256 != "" && !strings.EqualFold(in.SHA256, sum) {
			return nil, integrityErr("hash input", "input %d (%s): digest mismatch", i, filepath.Base(in.Path))
		}
		inputs[i] = Input{
			Path:   in.Path,
			SHA256: sum,
			Entry:  fmt.Sprintf("%s%02d_%s", inputsPrefix, i+1, filepath.Base(in.Path)),
		}
		digests[i] = sum
	}

	reportSum, err := HashFile(src)
	if err != nil {
		return nil, integrityErr("hash report", "%w", err)
	}

	m := Manifest{
		AuditID:         newID(),
		CaseID:          req.CaseID,
		TemplateVersion: req.TemplateVersion,
		PolicySHA256:    req.PolicyHash,
		InputsSHA256:    CombineHashes(digests),
		OutputsSHA256:   reportSum,
		CreatedAt:       now().UTC().Format(TimestampFormat),
		Inputs:          inputs,
		Report:          ReportRef{Path: req.ReportPath, SHA256: reportSum},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := b.PacketDir(req.CaseID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create packet dir: %w", err)
	}
	final := filepath.Join(dir, "audit_"+m.AuditID+".zip")

	if err := writeArchive(dir, final, m, src); err != nil {
		return nil, err
	}

	if b.Recorder != nil {
		if err := b.Recorder.RecordPacket(ctx, recordFromManifest(m, final)); err != nil {
			os.Remove(final)
			return nil, fmt.Errorf("audit: record packet: %w", err)
		}
	}
	if b.Ledger != nil {
		if err := b.Ledger.Record(entryFromManifest(m, final)); err != nil {
			b.logger().Error("ledger chain append failed", "audit_id", m.AuditID, "case_id", m.CaseID, "err", err)
			b.rollback(ctx, m.AuditID, final)
			return nil, fmt.Errorf("audit: append ledger: %w", err)
		}
	}

	b.logger().Info("audit packet committed",
		"audit_id", m.AuditID, "case_id", m.CaseID,
		"policy_sha256", m.PolicySHA256, "inputs", len(m.Inputs))
	return &Packet{Path: final, Manifest: m}, nil
}

// rollback removes the archive and the recorder row of a packet whose
// ledger append failed.
func (b *Builder) rollback(ctx context.Context, auditID, final string) {
	if err := os.Remove(final); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger().Error("failed to remove uncommitted archive", "audit_id", auditID, "err", err)
	}
	if b.Recorder == nil {
		return
	}
	if err := b.Recorder.DeletePacket(context.WithoutCancel(ctx), auditID); err != nil {
		b.logger().Error("failed to remove uncommitted ledger row", "audit_id", auditID, "err", err)
	}
}

func recordFromManifest(m Manifest, path string) Record {
	return Record{
		AuditID:         m.AuditID,
		CaseID:          m.CaseID,
		TemplateVersion: m.TemplateVersion,
		PolicySHA256:    m.PolicySHA256,
		InputsSHA256:    m.InputsSHA256,
		OutputsSHA256:   m.OutputsSHA256,
		PacketPath:      path,
		CreatedAt:       m.CreatedAt,
	}
}

// writeArchive stages the zip in dir and renames it to final only after
// every entry was written and re-hashed.
func writeArchive(dir, final string, m Manifest, reportSrc string) (err error) {
	tmp, err := os.CreateTemp(dir, ".audit_*.zip.tmp")
	if err != nil {
		return fmt.Errorf("audit: create temp archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	modified, _ := time.Parse(TimestampFormat, m.CreatedAt)
	zw := zip.NewWriter(tmp)

	if err = writeJSONEntry(zw, ManifestEntry, modified, m); err != nil {
		return err
	}
	if err = writeJSONEntry(zw, HashesEntry, modified, m.hashes()); err != nil {
		return err
	}
	if err = copyEntry(zw, ReportEntry, modified, reportSrc, m.OutputsSHA256); err != nil {
		return err
	}
	for _, in := range m.Inputs {
		if err = copyEntry(zw, in.Entry, modified, in.Path, in.SHA256); err != nil {
			return err
		}
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("audit: finalize archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("audit: sync archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("audit: close archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("audit: commit archive: %w", err)
	}
	return nil
}

func entryHeader(name string, modified time.Time) *zip.FileHeader {
	return &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified}
}

func writeJSONEntry(zw *zip.Writer, name string, modified time.Time, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal %s: %w", name, err)
	}
	w, err := zw.CreateHeader(entryHeader(name, modified))
	if err != nil {
		return fmt.Errorf("audit: add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("audit: write %s: %w", name, err)
	}
	return nil
}

// copyEntry streams src into the archive and fails if the bytes written do
// not hash to want.
func copyEntry(zw *zip.Writer, name string, modified time.Time, src, want string) error {
	f, err := os.Open(src)
	if err != nil {
		return integrityErr("archive "+name, "%w", err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(entryHeader(name, modified))
	if err != nil {
		return fmt.Errorf("audit: add %s: %w", name, err)
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(w, h), f); err != nil {
		return fmt.Errorf("audit: write %s: %w", name, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return integrityErr("archive "+name, "content changed during packaging")
	}
	return nil
}

func validComponent(s string) error {
	switch {
	case s == "":
		return errors.New("empty")
	case s == "." || s == "..":
		return fmt.Errorf("invalid value %q", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("invalid value %q", s)
	}
	return nil
}
