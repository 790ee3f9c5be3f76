package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Case is the metadata a report is generated for.
type Case struct {
	CaseID       string    `json:"case_id"`
	Name         string    `json:"name"`
	Jurisdiction string    `json:"jurisdiction"`
	Judge        string    `json:"judge,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateCase inserts a new case with a generated id.
func (s *Store) CreateCase(ctx context.Context, name, jurisdiction, judge string) (*Case, error) {
	name = strings.TrimSpace(name)
	jurisdiction = strings.TrimSpace(jurisdiction)
	if name == "" || jurisdiction == "" {
		return nil, errors.New("store: case name and jurisdiction are required")
	}

	c := &Case{
		CaseID:       uuid.NewString(),
		Name:         name,
		Jurisdiction: jurisdiction,
		Judge:        strings.TrimSpace(judge),
	}
	ts := s.timestamp()
	c.CreatedAt = parseTime(ts)

	var judgeVal any
	if c.Judge != "" {
		judgeVal = c.Judge
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (case_id, name, jurisdiction, judge, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.CaseID, c.Name, c.Jurisdiction, judgeVal, ts)
	if err != nil {
		return nil, fmt.Errorf("store: insert case: %w", err)
	}
	return c, nil
}

// GetCase returns the case or ErrCaseNotFound.
func (s *Store) GetCase(ctx context.Context, caseID string) (*Case, error) {
	var (
		c     Case
		judge sql.NullString
		ts    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT case_id, name, jurisdiction, judge, created_at FROM cases WHERE case_id = ?`, caseID,
	).Scan(&c.CaseID, &c.Name, &c.Jurisdiction, &judge, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get case: %w", err)
	}
	c.Judge = nullStr(judge)
	c.CreatedAt = parseTime(ts)
	return &c, nil
}

// ListCases returns every case, oldest first.
func (s *Store) ListCases(ctx context.Context) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, name, jurisdiction, judge, created_at FROM cases ORDER BY created_at, case_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list cases: %w", err)
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		var (
			c     Case
			judge sql.NullString
			ts    string
		)
		if err := rows.Scan(&c.CaseID, &c.Name, &c.Jurisdiction, &judge, &ts); err != nil {
			return nil, fmt.Errorf("store: scan case: %w", err)
		}
		c.Judge = nullStr(judge)
		c.CreatedAt = parseTime(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}
