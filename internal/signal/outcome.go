package signal

import "strings"

// Outcome projections from the decision table.
const (
	OutcomeNeutral             = 0.5
	OutcomeRelationshipClosure = 0.2
	OutcomeJobCompetence       = 0.3
	OutcomeFineClosure         = 0.1

	maxBiasPenalty = 0.8
)

func hasCategory(scores []CategoryScore, ids ...string) bool {
	for _, s := range scores {
		for _, id := range ids {
			if s.ID == id {
				return true
			}
		}
	}
	return false
}

func totalBias(scores []CategoryScore) float64 {
	total := 0.0
	for _, s := range scores {
		total += s.Score
	}
	return total
}

// scanOutcome projects a pragmatic-outcome score from topic keywords and the
// bias categories present, then discounts it by overall bias load.
func scanOutcome(text string, bias []CategoryScore) float64 {
	outcome := OutcomeNeutral
	switch {
	case strings.Contains(text, "relationship") && hasCategory(bias, SafetyProjection, AbuseNormalization):
		outcome = OutcomeRelationshipClosure
	case strings.Contains(text, "job") && hasCategory(bias, CompetenceHalo):
		outcome = OutcomeJobCompetence
	case strings.Contains(text, "fine") && hasCategory(bias, SafetyProjection):
		outcome = OutcomeFineClosure
	}

	penalty := totalBias(bias)
	if penalty > maxBiasPenalty {
		penalty = maxBiasPenalty
	}
	return clamp01(outcome * (1 - penalty*0.5))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
