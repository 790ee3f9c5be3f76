// Package signal turns free text into raw heuristic signals using fixed
// pattern tables. Every scanner is pure: identical text always produces
// identical output.
package signal

import "regexp"

// Group is the conceptual family a bias category belongs to.
type Group string

const (
	GroupPreservation Group = "self-preservation"
	GroupControl      Group = "control"
	GroupBelonging    Group = "belonging"
	GroupAdaptive     Group = "adaptive"
)

// Category is one entry of the closed bias taxonomy. Label is the neutral,
// pre-approved wording used whenever the category surfaces in a report.
type Category struct {
	ID       string
	Group    Group
	Weight   float64
	Label    string
	patterns []*regexp.Regexp
}

func category(id string, group Group, weight float64, label string, patterns ...string) Category {
	c := Category{ID: id, Group: group, Weight: weight, Label: label}
	for _, p := range patterns {
		c.patterns = append(c.patterns, regexp.MustCompile(p))
	}
	return c
}

// Category identifiers.
const (
	SelfSoothing          = "self_soothing"
	ContinuityIllusion    = "continuity_illusion"
	MoralCompression      = "moral_compression"
	ComparativeCushioning = "comparative_cushioning"
	PredictiveInflation   = "predictive_inflation"
	CompetenceHalo        = "competence_halo"
	CausalFantasy         = "causal_fantasy"
	SocialCamouflage      = "social_camouflage"
	RelationalDeflection  = "relational_deflection"
	SafetyProjection      = "safety_projection"
	AbuseNormalization    = "abuse_normalization"
	FragmentedAgency      = "fragmented_agency"
	HyperCompetenceMask   = "hyper_competence_mask"
)

// Categories is the bias taxonomy in scan order. Patterns match lowercased text.
var Categories = []Category{
	category(SelfSoothing, GroupPreservation, 0.7,
		"Observed minimization language pattern",
		`not that bad`, `basically`, `pretty good`, `fine`, `okay`),
	category(ContinuityIllusion, GroupPreservation, 0.6,
		"Observed continuity assertion without temporal markers",
		`always been`, `never changed`, `same as always`),
	category(MoralCompression, GroupPreservation, 0.5,
		"Observed value-claim without supporting specifics",
		`good person`, `trying my best`, `mean well`),
	category(ComparativeCushioning, GroupPreservation, 0.8,
		"Observed comparative framing",
		`at least`, `not like them`, `could be worse`),

	category(PredictiveInflation, GroupControl, 0.6,
		"Observed future-certainty language",
		`will work`, `going to`, `should improve`),
	category(CompetenceHalo, GroupControl, 0.7,
		"Observed self-assessment without external corroboration",
		`good at`, `skilled`, `talented`, `capable`),
	category(CausalFantasy, GroupControl, 0.5,
		"Observed causal attribution without mechanism",
		`because of me`, `my doing`, `made it happen`),

	category(SocialCamouflage, GroupBelonging, 0.6,
		"Observed normalization language",
		`everyone`, `normal`, `usual`, `typical`),
	category(RelationalDeflection, GroupBelonging, 0.8,
		"Observed external attribution pattern",
		`they're just`, `too sensitive`, `overreacting`),

	category(SafetyProjection, GroupAdaptive, 0.9,
		"Observed closure-assertion language",
		`i'm fine`, `over it`, `past that`, `moved on`),
	category(AbuseNormalization, GroupAdaptive, 0.9,
		"Observed acceptance framing",
		`not abuse`, `normal relationship`, `how relationships work`),
	category(FragmentedAgency, GroupAdaptive, 0.7,
		"Observed constraint language",
		`no choice`, `had to`, `couldn't help`),
	category(HyperCompetenceMask, GroupAdaptive, 0.8,
		"Observed self-sufficiency assertion",
		`handle everything`, `don't need help`, `got this`),
}

var categoryIndex = func() map[string]int {
	m := make(map[string]int, len(Categories))
	for i, c := range Categories {
		m[c.ID] = i
	}
	return m
}()

// Lookup returns the category with the given identifier.
func Lookup(id string) (Category, bool) {
	i, ok := categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	return Categories[i], true
}
