package signal

import "strings"

// Evidence strength constants per topic cluster.
const (
	EvidenceDefault              = 0.3
	EvidenceJobSelfAssessed      = 0.35
	EvidenceJob                  = 0.5
	EvidenceRelationshipPositive = 0.25
	EvidenceRelationship         = 0.4
	EvidenceNormalcyAsserted     = 0.15
	EvidenceNormalcy             = 0.5
)

// Topic keyword clusters. The first cluster that matches decides the score.
var (
	jobTopic          = []string{"good at job", "work performance", "job skills"}
	jobSelfAssessment = []string{"good", "skilled"}

	relationshipTopic    = []string{"relationship", "partner", "marriage"}
	relationshipPositive = []string{"healthy", "fine", "good"}

	normalcyTopic     = []string{"normal", "usual", "not unusual", "typical"}
	normalcyAssertion = []string{"not unusual", "normal"}
)

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func scanEvidence(text string) float64 {
	switch {
	case containsAny(text, jobTopic):
		if containsAny(text, jobSelfAssessment) {
			return EvidenceJobSelfAssessed
		}
		return EvidenceJob
	case containsAny(text, relationshipTopic):
		if containsAny(text, relationshipPositive) {
			return EvidenceRelationshipPositive
		}
		return EvidenceRelationship
	case containsAny(text, normalcyTopic):
		if containsAny(text, normalcyAssertion) {
			return EvidenceNormalcyAsserted
		}
		return EvidenceNormalcy
	default:
		return EvidenceDefault
	}
}
