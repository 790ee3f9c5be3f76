// Package vocab projects a SignalBundle onto a closed, pre-approved output
// vocabulary. Only the label strings declared here (or in the signal
// category table) ever reach a CourtSafeSummary.
package vocab

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/maat/internal/signal"
)

// Evidence gap labels.
const (
	GapNoExternalData      = "No external data points referenced to support claims"
	GapNoTemporalDetail    = "Statements lack temporal specificity"
	GapAbsoluteTerms       = "Absolute terms used without documented frequency data"
	GapUniversalQuantifier = "Universal quantifiers used without sample verification"
	GapSubjectiveCertainty = "Subjective certainty expressed without corroborating source"
)

// Follow-up labels.
const (
	FollowupSpecifics     = "Request specific dates, times, or documented instances"
	FollowupFutureBasis   = "Clarify basis for future-outcome statements"
	FollowupDirect        = "Request direct description without comparative framing"
	FollowupPersonal      = "Ask for specific personal experience rather than generalized norms"
	FollowupNoneNecessary = "No additional clarification recommended at this time"
)

const fallbackPrefix = "Observed pattern: "

var titleCaser = cases.Title(language.English)

// Label returns the neutral label for a bias category. Identifiers outside
// the closed table fall back to a label built from the sanitized identifier.
func Label(id string) string {
	if c, ok := signal.Lookup(id); ok {
		return c.Label
	}
	return fallbackPrefix + titleCaser.String(sanitizeIdentifier(id))
}

// sanitizeIdentifier keeps ASCII letters, digits and separators, mapping
// underscores and hyphens to spaces.
func sanitizeIdentifier(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteByte(' ')
		}
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	if s == "" {
		return "unnamed"
	}
	return s
}

// IsContradictionLabel reports whether a consistency flag counts toward
// contradiction_count. The markers are part of the label wording above.
func IsContradictionLabel(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "without") || strings.Contains(l, "assertion")
}
