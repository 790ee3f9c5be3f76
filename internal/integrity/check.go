// Package integrity verifies the running maat binary against a recorded
// SHA-256 checksum. The expected hash is embedded at build time via ldflags
// or read from a checksum file written after install.
package integrity

import (
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

	"github.com/ppiankov/maat/internal/logging"
)

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/ppiankov/maat/internal/integrity.ExpectedHash=<sha256hex>"
var ExpectedHash string

// DefaultChecksumPaths are checked in order when no hash is embedded.
var DefaultChecksumPaths = []string{
	"/etc/maat/binary.sha256",
	"$HOME/.maat/binary.sha256",
}

// ErrMismatch is returned when the binary does not match the expected hash.
var ErrMismatch = errors.New("binary checksum mismatch")

// Source names where the expected hash came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceBuild    Source = "build"
	SourceChecksum Source = "checksum_file"
)

// Status is the outcome of one verification.
type Status struct {
	Binary       string `json:"binary"`
	Source       Source `json:"source"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	ActualHash   string `json:"actual_hash"`
	Verified     bool   `json:"verified"`
}

// TamperEvent records a binary integrity violation.
type TamperEvent struct {
	Timestamp    string `json:"timestamp"`
	Binary       string `json:"binary"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
}

// Checker verifies a binary. The zero value checks the running executable
// against ExpectedHash and DefaultChecksumPaths and logs nowhere.
type Checker struct {
	// Binary overrides the executable path. Tests point it at a fixture.
	Binary        string
	ExpectedHash  string
	ChecksumPaths []string
	// TamperLogDir receives tamper.jsonl on mismatch. Empty disables it.
	TamperLogDir string
	Logger       *slog.Logger
}

// Verify hashes the binary and compares it with the expected hash.
// With no expected hash available it returns an unverified status and nil.
// On mismatch a tamper event is appended to TamperLogDir and ErrMismatch
// is returned.
func (c Checker) Verify() (Status, error) {
	logger := logging.OrDiscard(c.Logger)

	bin := c.Binary
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return Status{}, fmt.Errorf("integrity: cannot resolve executable path: %w", err)
		}
		bin = exe
	}
	actual, err := HashFile(bin)
	if err != nil {
		return Status{}, fmt.Errorf("integrity: cannot hash binary: %w", err)
	}

	st := Status{Binary: bin, ActualHash: actual, Source: SourceNone}
	expected := c.ExpectedHash
	if expected == "" {
		expected = ExpectedHash
	}
	if expected != "" {
		st.Source = SourceBuild
	} else {
		paths := c.ChecksumPaths
		if paths == nil {
			paths = DefaultChecksumPaths
		}
		if expected = loadChecksumFile(paths); expected != "" {
			st.Source = SourceChecksum
		}
	}
	if expected == "" {
		logger.Warn("no build-time hash or checksum file found, integrity check skipped")
		return st, nil
	}
	st.ExpectedHash = strings.ToLower(expected)

	if st.ActualHash == st.ExpectedHash {
		st.Verified = true
		logger.Debug("binary checksum verified", "sha256", actual)
		return st, nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Binary:       bin,
		ExpectedHash: st.ExpectedHash,
		ActualHash:   actual,
		Type:         "binary_tamper",
	}
	event.Hostname, _ = os.Hostname()
	if c.TamperLogDir != "" {
		if err := writeTamperEvent(c.TamperLogDir, event); err != nil {
			logger.Error("failed to record tamper event", "error", err)
		}
	}
	logger.Error("binary checksum mismatch", "binary", bin, "expected", st.ExpectedHash, "actual", actual)
	return st, fmt.Errorf("integrity: %w (expected %s, got %s)", ErrMismatch, st.ExpectedHash, actual)
}

// HashSelf returns the SHA-256 hex digest of the running binary.
func HashSelf() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	return HashFile(exe)
}

// HashFile returns the SHA-256 hex digest of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadChecksumFile returns the first well-formed digest found, or "".
func loadChecksumFile(paths []string) string {
	for _, p := range paths {
		data, err := os.ReadFile(os.ExpandEnv(p))
		if err != nil {
			continue
		}
		// Accept "sha256sum" output as well as a bare digest.
		fields := strings.Fields(string(data))
		if len(fields) == 0 {
			continue
		}
		if hash := fields[0]; len(hash) == 64 && isHex(hash) {
			return hash
		}
	}
	return ""
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func writeTamperEvent(dir string, event TamperEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "tamper.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
