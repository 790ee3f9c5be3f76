package vocab

import (
	"regexp"
	"sort"
	"strings"
)

// RedactionMarker replaces any forbidden term found in an emitted string.
const RedactionMarker = "[REDACTED]"

// DefaultForbiddenTerms is the diagnostic, clinical and predictive vocabulary
// that may never appear in a summary. Entries match as case-insensitive
// substrings, so "manipulat" covers every inflection.
var DefaultForbiddenTerms = []string{
	"delusion", "delusional", "lying", "liar", "manipulat",
	"psycho", "narcissi", "borderline", "trauma", "abuse",
	"diagnos", "disorder", "patholog", "predict verdict",
	"will vote", "likely to convict", "archetype",
}

// redactor is a compiled forbidden-term alternation. Longer terms come first
// so that "delusional" is consumed whole before "delusion".
type redactor struct {
	re *regexp.Regexp
}

func newRedactor(terms []string) *redactor {
	uniq := make(map[string]bool)
	var list []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || uniq[t] {
			continue
		}
		uniq[t] = true
		list = append(list, t)
	}
	if len(list) == 0 {
		return &redactor{}
	}
	sort.Slice(list, func(i, j int) bool {
		if len(list[i]) != len(list[j]) {
			return len(list[i]) > len(list[j])
		}
		return list[i] < list[j]
	})
	quoted := make([]string, len(list))
	for i, t := range list {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return &redactor{re: regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))}
}

func (r *redactor) redact(s string) string {
	if r.re == nil {
		return s
	}
	return r.re.ReplaceAllString(s, RedactionMarker)
}

func (r *redactor) redactAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.redact(s)
	}
	return out
}

// contains reports whether s carries any forbidden term.
func (r *redactor) contains(s string) bool {
	return r.re != nil && r.re.MatchString(s)
}
