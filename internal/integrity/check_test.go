package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBinary(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maat")
	content := []byte("test binary content")
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatal(err)
	}
	h := sha256.Sum256(content)
	return path, hex.EncodeToString(h[:])
}

func TestVerifySkipsWhenNoExpectedHash(t *testing.T) {
	bin, _ := writeBinary(t)
	c := Checker{Binary: bin, ChecksumPaths: []string{"/nonexistent/path"}}

	st, err := c.Verify()
	if err != nil {
		t.Fatalf("expected nil error without an expected hash, got %v", err)
	}
	if st.Verified || st.Source != SourceNone {
		t.Fatalf("expected unverified status, got %+v", st)
	}
	if st.ActualHash == "" {
		t.Error("expected actual hash to be populated")
	}
}

func TestVerifyPassesWithCorrectHash(t *testing.T) {
	bin, want := writeBinary(t)

	st, err := Checker{Binary: bin, ExpectedHash: strings.ToUpper(want)}.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Verified || st.Source != SourceBuild {
		t.Fatalf("expected verified build hash, got %+v", st)
	}
}

func TestVerifyReadsChecksumFile(t *testing.T) {
	bin, want := writeBinary(t)
	sum := filepath.Join(t.TempDir(), "binary.sha256")
	if err := os.WriteFile(sum, []byte(want+"  maat\n"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := Checker{Binary: bin, ChecksumPaths: []string{"/nonexistent", sum}}.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Verified || st.Source != SourceChecksum {
		t.Fatalf("expected verified checksum file, got %+v", st)
	}
}

func TestChecksumFileIgnoresMalformed(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.sha256")
	if err := os.WriteFile(bad, []byte("not-a-digest"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := loadChecksumFile([]string{bad}); got != "" {
		t.Fatalf("expected malformed checksum ignored, got %q", got)
	}
}

func TestTamperEventWrittenOnMismatch(t *testing.T) {
	bin, _ := writeBinary(t)
	logDir := filepath.Join(t.TempDir(), "state")

	_, err := Checker{Binary: bin, ExpectedHash: strings.Repeat("0", 64), TamperLogDir: logDir}.Verify()
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(logDir, "tamper.jsonl"))
	if err != nil {
		t.Fatalf("expected tamper log to exist: %v", err)
	}
	var event TamperEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event); err != nil {
		t.Fatalf("failed to parse tamper event: %v", err)
	}
	if event.Type != "binary_tamper" {
		t.Errorf("expected type binary_tamper, got %s", event.Type)
	}
	if event.Binary != bin || event.ActualHash == "" || event.Timestamp == "" {
		t.Errorf("incomplete tamper event %+v", event)
	}

	dirInfo, err := os.Stat(logDir)
	if err != nil {
		t.Fatal(err)
	}
	if dirInfo.Mode().Perm() != 0700 {
		t.Errorf("expected dir perm 0700, got %04o", dirInfo.Mode().Perm())
	}
	fileInfo, err := os.Stat(filepath.Join(logDir, "tamper.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if fileInfo.Mode().Perm() != 0600 {
		t.Errorf("expected file perm 0600, got %04o", fileInfo.Mode().Perm())
	}
}
