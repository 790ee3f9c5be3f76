package signal

import "regexp"

// DefaultCoherence is used when confidence and doubt do not both occur.
const DefaultCoherence = 0.7

// Affect holds per-lexicon densities (entries present per word) and the derived coherence.
type Affect struct {
	Anxiety       float64 `json:"anxiety"`
	Confidence    float64 `json:"confidence"`
	Doubt         float64 `json:"doubt"`
	Defensiveness float64 `json:"defensiveness"`
	Minimization  float64 `json:"minimization"`
	Coherence     float64 `json:"coherence"`
}

// lexicon compiles one word-boundary pattern per entry.
func lexicon(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

var (
	anxietyLexicon       = lexicon("worried", "nervous", "scared", "afraid", "anxious")
	confidenceLexicon    = lexicon("sure", "certain", "confident", "positive")
	doubtLexicon         = lexicon("maybe", "perhaps", "might", "could be", "possibly")
	defensivenessLexicon = lexicon("but", "however", "actually", "really")
	minimizationLexicon  = lexicon("just", "only", "simply", "merely")
)

// density is the number of lexicon entries present in text divided by the
// word count. Repeating an entry does not raise it.
func density(lex []*regexp.Regexp, text string, words int) float64 {
	if words == 0 {
		return 0
	}
	present := 0
	for _, re := range lex {
		if re.MatchString(text) {
			present++
		}
	}
	return float64(present) / float64(words)
}

func scanAffect(text string, words int) Affect {
	a := Affect{
		Anxiety:       density(anxietyLexicon, text, words),
		Confidence:    density(confidenceLexicon, text, words),
		Doubt:         density(doubtLexicon, text, words),
		Defensiveness: density(defensivenessLexicon, text, words),
		Minimization:  density(minimizationLexicon, text, words),
	}
	a.Coherence = coherence(a.Confidence, a.Doubt)
	return a
}

// coherence drops as doubt markers approach the level of confidence claims.
func coherence(confidence, doubt float64) float64 {
	if confidence > 0 && doubt > 0 {
		c := 1.0 - doubt/confidence
		if c < 0 {
			return 0
		}
		return c
	}
	return DefaultCoherence
}
