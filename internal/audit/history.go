package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// HistoryFilter selects ledger entries for one case.
type HistoryFilter struct {
	CaseID string    // empty = every case
	From   time.Time // zero value = no lower bound
	To     time.Time // zero value = no upper bound
}

// HistorySummary counts the selected packets.
type HistorySummary struct {
	Total          int    `json:"total"`
	PolicyVersions int    `json:"policy_versions"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// HistoryResult holds the filtered entries and their summary.
type HistoryResult struct {
	CaseID  string         `json:"case_id,omitempty"`
	Entries []LedgerEntry  `json:"entries"`
	Summary HistorySummary `json:"summary"`
}

// History reads the ledger and returns the entries matching filter in
// ledger order.
func History(path string, filter HistoryFilter) (*HistoryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	result := &HistoryResult{CaseID: filter.CaseID}
	policies := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		var entry LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // malformed lines are reported by Verify
		}
		if filter.CaseID != "" && entry.CaseID != filter.CaseID {
			continue
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		s := &result.Summary
		s.Total++
		if !policies[entry.PolicySHA256] {
			policies[entry.PolicySHA256] = true
			s.PolicyVersions++
		}
		if s.FirstTimestamp == "" {
			s.FirstTimestamp = entry.Timestamp
		}
		s.LastTimestamp = entry.Timestamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return result, nil
}
