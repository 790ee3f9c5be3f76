package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// HashBytes returns the hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// HashFile returns the hex SHA-256 digest of the file at path.
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

// CombineHashes is the order-independent hash of a set of digests: the
// digests are sorted, joined with "\n" and hashed.
func CombineHashes(hashes []string) string {
	sorted := append([]string(nil), hashes...)
	sort.Strings(sorted)
	return HashBytes([]byte(strings.Join(sorted, "\n")))
}

// IntegrityError is a fatal packaging or verification failure. Its message
// is safe to show to operators; Err carries the detail for logs.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit: integrity failure during %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func integrityErr(op string, format string, args ...any) error {
	return &IntegrityError{Op: op, Err: fmt.Errorf(format, args...)}
}
