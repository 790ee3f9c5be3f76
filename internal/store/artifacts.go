package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Artifact types accepted by the pipeline.
const (
	TypeTranscript    = "transcript"
	TypeVenue         = "venue"
	TypeSJQ           = "sjq"
	TypeVoirDire      = "voir_dire"
	TypePublicRecords = "public_records"
	TypePublicSocial  = "public_social"
)

// ArtifactTypes lists every type in packaging order.
var ArtifactTypes = []string{
	TypeTranscript, TypeVenue, TypeSJQ, TypeVoirDire, TypePublicRecords, TypePublicSocial,
}

// ValidArtifactType reports whether t is a known artifact type.
func ValidArtifactType(t string) bool {
	for _, v := range ArtifactTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Artifact is a stored input file.
type Artifact struct {
	ArtifactID string    `json:"artifact_id"`
	CaseID     string    `json:"case_id"`
	Type       string    `json:"type"`
	Path       string    `json:"path"`
	SHA256     string    `json:"sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewArtifactID returns a fresh artifact id. Callers that need the id before
// the row exists (to name the stored file) allocate it here.
func NewArtifactID() string {
	return uuid.NewString()
}

// AddArtifact records an artifact already copied into the data directory.
func (s *Store) AddArtifact(ctx context.Context, a Artifact) (*Artifact, error) {
	if !ValidArtifactType(a.Type) {
		return nil, fmt.Errorf("store: unknown artifact type %q", a.Type)
	}
	if _, err := s.GetCase(ctx, a.CaseID); err != nil {
		return nil, err
	}
	if a.ArtifactID == "" {
		a.ArtifactID = NewArtifactID()
	}
	ts := s.timestamp()
	a.CreatedAt = parseTime(ts)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (artifact_id, case_id, type, path, sha256, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ArtifactID, a.CaseID, a.Type, a.Path, a.SHA256, ts)
	if err != nil {
		return nil, fmt.Errorf("store: insert artifact: %w", err)
	}
	return &a, nil
}

const artifactColumns = `artifact_id, case_id, type, path, sha256, created_at`

// ListArtifacts returns a case's artifacts ordered by creation.
func (s *Store) ListArtifacts(ctx context.Context, caseID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE case_id = ? ORDER BY created_at, seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("store: list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// LatestArtifact returns the newest artifact of a type, or ErrNotFound.
func (s *Store) LatestArtifact(ctx context.Context, caseID, artifactType string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE case_id = ? AND type = ?
		 ORDER BY created_at DESC, seq DESC LIMIT 1`, caseID, artifactType)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func scanArtifact(row scanner) (*Artifact, error) {
	var (
		a  Artifact
		ts string
	)
	if err := row.Scan(&a.ArtifactID, &a.CaseID, &a.Type, &a.Path, &a.SHA256, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan artifact: %w", err)
	}
	a.CreatedAt = parseTime(ts)
	return &a, nil
}
