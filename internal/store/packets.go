package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/maat/internal/audit"
)

// RecordPacket writes the immutable ledger row for a committed packet.
// It satisfies audit.Recorder.
func (s *Store) RecordPacket(ctx context.Context, rec audit.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_packets
		 (audit_id, case_id, policy_sha256, inputs_sha256, outputs_sha256, template_version, packet_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AuditID, rec.CaseID, rec.PolicySHA256, rec.InputsSHA256, rec.OutputsSHA256,
		rec.TemplateVersion, rec.PacketPath, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert audit packet: %w", err)
	}
	return nil
}

// DeletePacket removes the row of a packet that failed to commit.
// It satisfies audit.Recorder.
func (s *Store) DeletePacket(ctx context.Context, auditID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audit_packets WHERE audit_id = ?`, auditID); err != nil {
		return fmt.Errorf("store: delete audit packet: %w", err)
	}
	return nil
}

// ListPackets returns a case's ledger rows, oldest first.
func (s *Store) ListPackets(ctx context.Context, caseID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, case_id, policy_sha256, inputs_sha256, outputs_sha256, template_version, packet_path, created_at
		 FROM audit_packets WHERE case_id = ? ORDER BY created_at, audit_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("store: list packets: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var r audit.Record
		if err := rows.Scan(&r.AuditID, &r.CaseID, &r.PolicySHA256, &r.InputsSHA256, &r.OutputsSHA256,
			&r.TemplateVersion, &r.PacketPath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan packet: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
