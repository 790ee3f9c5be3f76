package audit

// LedgerEntry is one line in the hash-chained JSONL packet ledger. It mirrors
// the audit_packets row written for the same packet.
// All fields are plain strings so json.Marshal field order is fixed and the
// line hash is reproducible.
type LedgerEntry struct {
	Timestamp       string `json:"ts"`
	AuditID         string `json:"audit_id"`
	CaseID          string `json:"case_id"`
	TemplateVersion string `json:"template_version"`
	PolicySHA256    string `json:"policy_sha256"`
	InputsSHA256    string `json:"inputs_sha256"`
	OutputsSHA256   string `json:"outputs_sha256"`
	PacketPath      string `json:"packet_path"`
	PrevHash        string `json:"prev_hash"`
}

// entryFromManifest builds the ledger line for a committed packet.
func entryFromManifest(m Manifest, packetPath string) LedgerEntry {
	return LedgerEntry{
		Timestamp:       m.CreatedAt,
		AuditID:         m.AuditID,
		CaseID:          m.CaseID,
		TemplateVersion: m.TemplateVersion,
		PolicySHA256:    m.PolicySHA256,
		InputsSHA256:    m.InputsSHA256,
		OutputsSHA256:   m.OutputsSHA256,
		PacketPath:      packetPath,
	}
}
