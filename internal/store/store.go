// Package store is the durable case store: cases, append-only policy
// documents, ingested artifacts and the audit packet ledger.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	case_id      TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	jurisdiction TEXT NOT NULL,
	judge        TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policies (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	policy_id    TEXT NOT NULL UNIQUE,
	case_id      TEXT NOT NULL,
	name         TEXT NOT NULL,
	version      TEXT NOT NULL,
	rules_json   TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (case_id) REFERENCES cases(case_id)
);
CREATE INDEX IF NOT EXISTS idx_policies_case ON policies(case_id, seq);

CREATE TABLE IF NOT EXISTS artifacts (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact_id  TEXT NOT NULL UNIQUE,
	case_id      TEXT NOT NULL,
	type         TEXT NOT NULL,
	path         TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (case_id) REFERENCES cases(case_id)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_case ON artifacts(case_id, type, seq);

CREATE TABLE IF NOT EXISTS audit_packets (
	audit_id         TEXT PRIMARY KEY,
	case_id          TEXT NOT NULL,
	policy_sha256    TEXT NOT NULL,
	inputs_sha256    TEXT NOT NULL,
	outputs_sha256   TEXT NOT NULL,
	template_version TEXT NOT NULL,
	packet_path      TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	FOREIGN KEY (case_id) REFERENCES cases(case_id)
);

CREATE TRIGGER IF NOT EXISTS audit_packets_immutable
BEFORE UPDATE ON audit_packets
BEGIN
	SELECT RAISE(ABORT, 'audit_packets rows are immutable');
END;

CREATE TRIGGER IF NOT EXISTS policies_immutable
BEFORE UPDATE ON policies
BEGIN
	SELECT RAISE(ABORT, 'policies rows are immutable');
END;
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Sentinel errors.
var (
	ErrNotFound       = errors.New("store: not found")
	ErrCaseNotFound   = fmt.Errorf("case_not_found: %w", ErrNotFound)
	ErrPolicyNotFound = fmt.Errorf("ruleset_not_found: %w", ErrNotFound)
)

// Store is a SQLite-backed case store. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// Writes are serialized through a single connection.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeLayout, v)
	return t
}
