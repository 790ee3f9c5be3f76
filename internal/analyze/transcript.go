// Package analyze derives the structured report sections from case
// artifacts. Every analyzer is a pure function of its input bytes.
package analyze

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Phase estimates.
const (
	PhaseEvidenceAssembly  = "Evidence Assembly"
	PhaseNarrativeSeeding  = "Narrative Seeding"
	PhaseSoftAlignment     = "Soft Alignment"
	PhaseConvergence       = "Convergence / Closure"
	maxUnresolvedItemRunes = 220
)

// Integrity notes emitted for transcript cue patterns.
const (
	NoteAuthorityOverEvidence   = "Observed authority cue density coinciding with reduced evidence references."
	NoteAbstractionOverEvidence = "Observed abstraction markers exceeding evidence references in the provided transcript."
)

var (
	authorityCues      = []string{"judge said", "instruction", "the law says", "must ", "required"}
	evidenceRefs       = []string{"exhibit", "testimony", "timeline", "record", "document", "evidence"}
	abstractionMarkers = []string{"i feel", "seems", "kind of", "just ", "probably", "maybe"}

	unresolvedRe = regexp.MustCompile(`(?is)\[UNRESOLVED:(.*?)\]`)
)

// CueCounts are non-overlapping phrase counts over the lowercased transcript.
type CueCounts struct {
	AuthorityCues      int `json:"authority_cues"`
	EvidenceRefs       int `json:"evidence_refs"`
	AbstractionMarkers int `json:"abstraction_markers"`
}

// Forensics is the process analysis of one transcript.
type Forensics struct {
	Counts          CueCounts `json:"counts"`
	PhaseEstimate   string    `json:"phase_estimate"`
	UnresolvedItems []string  `json:"unresolved_evidence_items"`
}

func countPhrases(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		n += strings.Count(lower, p)
	}
	return n
}

// Transcript counts process cues, estimates the phase and collects
// [UNRESOLVED: ...] items with the markup removed.
func Transcript(text string) Forensics {
	lower := strings.ToLower(text)
	c := CueCounts{
		AuthorityCues:      countPhrases(lower, authorityCues),
		EvidenceRefs:       countPhrases(lower, evidenceRefs),
		AbstractionMarkers: countPhrases(lower, abstractionMarkers),
	}

	items := []string{}
	for _, m := range unresolvedRe.FindAllStringSubmatch(text, -1) {
		items = append(items, truncateRunes(strings.TrimSpace(m[1]), maxUnresolvedItemRunes))
	}

	return Forensics{
		Counts:          c,
		PhaseEstimate:   phase(c),
		UnresolvedItems: items,
	}
}

// phase applies the rules in order; later matches override earlier ones.
func phase(c CueCounts) string {
	p := PhaseEvidenceAssembly
	if c.AbstractionMarkers > c.EvidenceRefs {
		p = PhaseNarrativeSeeding
	}
	if c.AuthorityCues > 2 && c.EvidenceRefs < 3 {
		p = PhaseSoftAlignment
	}
	if c.AuthorityCues > 5 && c.AbstractionMarkers > c.EvidenceRefs {
		p = PhaseConvergence
	}
	return p
}

// IntegrityNotes returns the neutral process notes for the counts.
func (f Forensics) IntegrityNotes() []string {
	notes := []string{}
	if f.Counts.AuthorityCues > 5 && f.Counts.EvidenceRefs < 3 {
		notes = append(notes, NoteAuthorityOverEvidence)
	}
	if f.Counts.AbstractionMarkers > f.Counts.EvidenceRefs {
		notes = append(notes, NoteAbstractionOverEvidence)
	}
	return notes
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
