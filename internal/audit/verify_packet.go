package audit

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// PacketResult is the outcome of re-deriving every digest in a packet.
type PacketResult struct {
	Valid         bool   `json:"valid"`
	AuditID       string `json:"audit_id,omitempty"`
	CaseID        string `json:"case_id,omitempty"`
	PolicySHA256  string `json:"policy_sha256,omitempty"`
	InputsSHA256  string `json:"inputs_sha256,omitempty"`
	OutputsSHA256 string `json:"outputs_sha256,omitempty"`
	Inputs        int    `json:"inputs"`
	Error         string `json:"error,omitempty"`
}

// ReadManifest returns the manifest stored in a packet.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open packet: %w", err)
	}
	defer zr.Close()

	var m Manifest
	if err := readJSON(entries(&zr.Reader), ManifestEntry, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// VerifyPacket re-hashes the report copy and every input copy in the
// archive and checks them against the manifest and hashes.json.
func VerifyPacket(path string) PacketResult {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return PacketResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer zr.Close()
	files := entries(&zr.Reader)

	var m Manifest
	if err := readJSON(files, ManifestEntry, &m); err != nil {
		return PacketResult{Error: err.Error()}
	}
	res := PacketResult{
		AuditID:       m.AuditID,
		CaseID:        m.CaseID,
		PolicySHA256:  m.PolicySHA256,
		InputsSHA256:  m.InputsSHA256,
		OutputsSHA256: m.OutputsSHA256,
		Inputs:        len(m.Inputs),
	}
	fail := func(format string, args ...any) PacketResult {
		res.Error = fmt.Sprintf(format, args...)
		return res
	}

	reportSum, err := hashEntry(files, ReportEntry)
	if err != nil {
		return fail("%v", err)
	}
	if reportSum != m.OutputsSHA256 || reportSum != m.Report.SHA256 {
		return fail("report digest %s does not match manifest outputs_sha256 %s", reportSum, m.OutputsSHA256)
	}

	digests := make([]string, len(m.Inputs))
	listed := make(map[string]bool, len(m.Inputs))
	for i, in := range m.Inputs {
		sum, err := hashEntry(files, in.Entry)
		if err != nil {
			return fail("%v", err)
		}
		if sum != in.SHA256 {
			return fail("input %s digest %s does not match manifest %s", in.Entry, sum, in.SHA256)
		}
		digests[i] = sum
		listed[in.Entry] = true
	}
	if combined := CombineHashes(digests); combined != m.InputsSHA256 {
		return fail("combined input digest %s does not match manifest inputs_sha256 %s", combined, m.InputsSHA256)
	}

	var extra []string
	for name := range files {
		if strings.HasPrefix(name, inputsPrefix) && !listed[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fail("archive carries inputs not listed in manifest: %s", strings.Join(extra, ", "))
	}

	if _, ok := files[HashesEntry]; ok {
		var h Hashes
		if err := readJSON(files, HashesEntry, &h); err != nil {
			return fail("%v", err)
		}
		want := m.hashes()
		if h.PolicySHA256 != want.PolicySHA256 || h.InputsSHA256 != want.InputsSHA256 ||
			h.OutputsSHA256 != want.OutputsSHA256 || strings.Join(h.Inputs, ",") != strings.Join(want.Inputs, ",") {
			return fail("%s disagrees with %s", HashesEntry, ManifestEntry)
		}
	}

	res.Valid = true
	return res
}

func entries(r *zip.Reader) map[string]*zip.File {
	m := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		m[f.Name] = f
	}
	return m
}

func readJSON(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("audit: packet has no %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", name, err)
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("audit: parse %s: %w", name, err)
	}
	return nil
}

func hashEntry(files map[string]*zip.File, name string) (string, error) {
	f, ok := files[name]
	if !ok {
		return "", fmt.Errorf("audit: packet has no %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("audit: open %s: %w", name, err)
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("audit: read %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
