// Package firewall is the last gate before a rendered report is persisted.
// It rejects forbidden vocabulary and causal phrasing; it never rewrites text.
package firewall

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies the class of a violation.
type Kind string

const (
	KindForbiddenTerm Kind = "forbidden_term"
	KindCausation     Kind = "forbidden_causation_language"
)

// DefaultForbiddenTerms are diagnostic, predictive and typology terms
// matched as case-insensitive substrings.
var DefaultForbiddenTerms = []string{
	"diagnose", "diagnosis", "archetype", "trauma", "predict", "prediction",
	"verdict slant", "personality type", "enneagram", "mbti",
}

// causationRe matches causal attribution as whole words.
var causationRe = regexp.MustCompile(`(?i)\b(?:caused|intended|manipulated)\b`)

// Violation is one match found in rendered text.
type Violation struct {
	Kind   Kind   `json:"kind"`
	Term   string `json:"term"`
	Offset int    `json:"offset"`
}

// String renders the violation as a machine-readable reason code.
func (v Violation) String() string {
	if v.Kind == KindCausation {
		return string(KindCausation)
	}
	return string(KindForbiddenTerm) + ":" + v.Term
}

// Firewall holds a fixed forbidden-term set.
type Firewall struct {
	terms []string
}

// New builds a firewall from DefaultForbiddenTerms plus extra. Terms are
// lowercased and deduplicated.
func New(extra ...[]string) *Firewall {
	seen := make(map[string]bool)
	var terms []string
	add := func(list []string) {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			terms = append(terms, t)
		}
	}
	add(DefaultForbiddenTerms)
	for _, list := range extra {
		add(list)
	}
	return &Firewall{terms: terms}
}

// Terms returns the configured forbidden terms.
func (f *Firewall) Terms() []string {
	return append([]string(nil), f.terms...)
}

// Validate scans text and returns every violation, ordered by offset. An
// empty result means the text may be published.
func (f *Firewall) Validate(text string) []Violation {
	lower := strings.ToLower(text)

	var out []Violation
	for _, t := range f.terms {
		from := 0
		for {
			i := strings.Index(lower[from:], t)
			if i < 0 {
				break
			}
			out = append(out, Violation{Kind: KindForbiddenTerm, Term: t, Offset: from + i})
			from += i + len(t)
		}
	}
	for _, loc := range causationRe.FindAllStringIndex(lower, -1) {
		out = append(out, Violation{Kind: KindCausation, Term: lower[loc[0]:loc[1]], Offset: loc[0]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}

// Codes collapses violations into their distinct reason codes, first
// occurrence order.
func Codes(vs []Violation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vs {
		c := v.String()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
