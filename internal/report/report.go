// Package report renders the case report as markdown.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/maat/internal/analyze"
	"github.com/ppiankov/maat/internal/vocab"
)

const (
	none = "(none)"

	// maxSummaryItems caps each summary list in the rendered report.
	maxSummaryItems = 10
)

// Meta identifies the case in the report header.
type Meta struct {
	CaseID       string
	Name         string
	Jurisdiction string
	Judge        string
}

// Sections holds the analyzer outputs. Nil fields render as "(none)".
type Sections struct {
	Forensics    *analyze.Forensics
	Venue        *analyze.VenueMatrix
	Distribution *analyze.Distribution
	Disclosure   []analyze.DisclosureFlag
	Social       *analyze.SocialSummary
	Statement    *vocab.Summary
}

// snapshot is the pre-retcon snapshot payload.
type snapshot struct {
	PhaseEstimate string            `json:"phase_estimate"`
	Counts        analyze.CueCounts `json:"counts"`
}

// Render produces the report markdown. Output depends only on its inputs.
func Render(meta Meta, s Sections) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# MAAT Report: %s\n\n", meta.Name)
	fmt.Fprintf(&b, "- Case ID: `%s`\n", meta.CaseID)
	fmt.Fprintf(&b, "- Jurisdiction: %s\n", meta.Jurisdiction)
	if meta.Judge != "" {
		fmt.Fprintf(&b, "- Judge: %s\n", meta.Judge)
	}

	f := s.Forensics

	heading(&b, "1) Process Timeline")
	if f != nil {
		fmt.Fprintf(&b, "Observed phase estimate: **%s**.\n", f.PhaseEstimate)
	} else {
		b.WriteString(none + "\n")
	}

	heading(&b, "2) Authority Event Log")
	if f != nil {
		fmt.Fprintf(&b, "Recorded authority cue count: %d.\n", f.Counts.AuthorityCues)
	} else {
		b.WriteString(none + "\n")
	}

	heading(&b, "3) Unresolved Evidence Ledger")
	if f != nil {
		bullets(&b, f.UnresolvedItems, 0)
	} else {
		b.WriteString(none + "\n")
	}

	heading(&b, "4) Pre-Retcon Snapshot")
	if f != nil {
		jsonBlock(&b, snapshot{PhaseEstimate: f.PhaseEstimate, Counts: f.Counts})
	} else {
		b.WriteString(none + "\n")
	}

	heading(&b, "5) Process Integrity Notes")
	if f != nil {
		bullets(&b, f.IntegrityNotes(), 0)
	} else {
		b.WriteString(none + "\n")
	}

	heading(&b, "6) Venue Sensitivity Matrix")
	optionalJSON(&b, s.Venue, s.Venue == nil)

	heading(&b, "7) Response Distribution Map")
	optionalJSON(&b, s.Distribution, s.Distribution == nil)

	heading(&b, "8) Disclosure Consistency Flags")
	optionalJSON(&b, s.Disclosure, len(s.Disclosure) == 0)

	heading(&b, "9) Public Social Summary")
	optionalJSON(&b, s.Social, s.Social == nil)

	if s.Statement != nil {
		statement(&b, *s.Statement)
	}
	return b.String()
}

func heading(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n## %s\n", title)
}

// bullets writes one item per line, "(none)" when empty. max <= 0 means no cap.
func bullets(b *strings.Builder, items []string, max int) {
	if len(items) == 0 {
		b.WriteString(none + "\n")
		return
	}
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func optionalJSON(b *strings.Builder, v any, empty bool) {
	if empty {
		b.WriteString(none + "\n")
		return
	}
	jsonBlock(b, v)
}

// jsonBlock writes v as a fenced, two-space indented JSON block without
// HTML escaping.
func jsonBlock(b *strings.Builder, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		b.WriteString(none + "\n")
		return
	}
	b.WriteString("```json\n")
	b.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	b.WriteString("\n```\n")
}

func statement(b *strings.Builder, s vocab.Summary) {
	heading(b, "Statement Consistency Summary")
	if s.Degraded() {
		b.WriteString("- Status: unavailable (analysis error).\n")
		return
	}
	fmt.Fprintf(b, "- Coherence score: **%s**\n", num(s.CoherenceScore))
	fmt.Fprintf(b, "- Truth gradient: **%s**\n", num(s.TruthGradient))
	fmt.Fprintf(b, "- Evidence strength: **%s%%**\n", num(s.EvidenceStrengthPct))
	fmt.Fprintf(b, "- Contradiction count (heuristic): **%d**\n", s.ContradictionCount)

	lists := []struct {
		title string
		items []string
	}{
		{"Flags (sample)", s.ConsistencyFlags},
		{"Evidence gaps (sample)", s.EvidenceGaps},
		{"Recommended followups (sample)", s.RecommendedFollowups},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n**%s:**\n", l.title)
		bullets(b, l.items, maxSummaryItems)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
