package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/maat/internal/policy"
)

// PolicyRecord is a stored, immutable policy document.
type PolicyRecord struct {
	PolicyID  string           `json:"policy_id"`
	CaseID    string           `json:"case_id"`
	SHA256    string           `json:"sha256"`
	CreatedAt time.Time        `json:"created_at"`
	Document  *policy.Document `json:"document"`
}

// AddPolicy appends a policy revision for a case. Earlier revisions are
// never modified; the newest becomes active.
func (s *Store) AddPolicy(ctx context.Context, caseID string, doc *policy.Document) (*PolicyRecord, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	rules, err := doc.Rules.CanonicalJSON()
	if err != nil {
		return nil, fmt.Errorf("store: encode rules: %w", err)
	}

	rec := &PolicyRecord{
		PolicyID: uuid.NewString(),
		CaseID:   caseID,
		SHA256:   doc.SHA256(),
		Document: doc,
	}
	ts := s.timestamp()
	rec.CreatedAt = parseTime(ts)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO policies (policy_id, case_id, name, version, rules_json, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.PolicyID, caseID, doc.Name, doc.Version, string(rules), rec.SHA256, ts)
	if err != nil {
		return nil, fmt.Errorf("store: insert policy: %w", err)
	}
	return rec, nil
}

const policyColumns = `policy_id, case_id, name, version, rules_json, sha256, created_at`

// ActivePolicy returns the most recently added policy for a case, or
// ErrPolicyNotFound.
func (s *Store) ActivePolicy(ctx context.Context, caseID string) (*PolicyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE case_id = ? ORDER BY seq DESC LIMIT 1`, caseID)
	rec, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	return rec, err
}

// ListPolicies returns every revision for a case, oldest first.
func (s *Store) ListPolicies(ctx context.Context, caseID string) ([]PolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE case_id = ? ORDER BY seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("store: list policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		rec, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*PolicyRecord, error) {
	var (
		rec       PolicyRecord
		doc       policy.Document
		rulesJSON string
		ts        string
	)
	if err := row.Scan(&rec.PolicyID, &rec.CaseID, &doc.Name, &doc.Version, &rulesJSON, &rec.SHA256, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan policy: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &doc.Rules); err != nil {
		return nil, fmt.Errorf("store: decode rules for policy %s: %w", rec.PolicyID, err)
	}
	if got := doc.SHA256(); got != rec.SHA256 {
		return nil, fmt.Errorf("store: policy %s content hash %s does not match stored %s", rec.PolicyID, got, rec.SHA256)
	}
	rec.CreatedAt = parseTime(ts)
	rec.Document = &doc
	return &rec, nil
}
