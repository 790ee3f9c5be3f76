package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatHistory renders a HistoryResult as a text timeline.
func FormatHistory(result *HistoryResult) string {
	scope := result.CaseID
	if scope == "" {
		scope = "all cases"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Ledger: %s | No packets recorded.\n", scope)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger: %s | %s to %s UTC\n", scope,
		formatDate(result.Summary.FirstTimestamp), formatDate(result.Summary.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-19s %-36s %-12s policy %s  inputs %s  report %s\n",
			formatDate(e.Timestamp), e.AuditID, truncate(e.CaseID, 12),
			short(e.PolicySHA256), short(e.InputsSHA256), short(e.OutputsSHA256))
	}

	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Summary: %d packet(s) | %d policy version(s)\n",
		result.Summary.Total, result.Summary.PolicyVersions)
	return b.String()
}

// FormatJSON renders a HistoryResult as indented JSON.
func FormatJSON(result *HistoryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

func formatDate(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
