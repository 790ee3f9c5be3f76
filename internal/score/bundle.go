// Package score turns raw extraction signals into a bounded SignalBundle.
package score

import (
	"github.com/ppiankov/maat/internal/signal"
)

// DefaultInclusionThreshold is the minimum 0-100 category score kept in BiasBreakdown.
const DefaultInclusionThreshold = 10.0

// Bundle is the per-statement signal set. The four components are on a
// 0-100 scale, CompositeTruthScore on 0-1.
type Bundle struct {
	EvidenceStrength    float64            `json:"evidence_strength"`
	EmotionalCoherence  float64            `json:"emotional_coherence"`
	BiasDensity         float64            `json:"bias_density"`
	PragmaticReality    float64            `json:"pragmatic_reality"`
	BiasBreakdown       map[string]float64 `json:"bias_breakdown"`
	EmotionalProfile    map[string]float64 `json:"emotional_profile"`
	CompositeTruthScore float64            `json:"composite_truth_score"`
}

// Composite is the equal-weight mean of the four normalized components with
// bias density inverted, clamped to [0,1].
func Composite(evidence, coherence, biasDensity, pragmatic float64) float64 {
	return clamp01((evidence + coherence + (1 - biasDensity) + pragmatic) / 4)
}

// Recompute re-derives the composite score from the four published
// components alone.
func (b Bundle) Recompute() float64 {
	return Composite(
		b.EvidenceStrength/100,
		b.EmotionalCoherence/100,
		b.BiasDensity/100,
		b.PragmaticReality/100,
	)
}

// Synthesizer builds bundles from raw signals.
type Synthesizer struct {
	// InclusionThreshold filters BiasBreakdown on the 0-100 scale.
	InclusionThreshold float64
}

// New returns a synthesizer with the default inclusion threshold.
func New() *Synthesizer {
	return &Synthesizer{InclusionThreshold: DefaultInclusionThreshold}
}

// Synthesize computes the bundle for one extraction pass.
func (s *Synthesizer) Synthesize(raw signal.Raw) Bundle {
	threshold := DefaultInclusionThreshold
	if s != nil && s.InclusionThreshold > 0 {
		threshold = s.InclusionThreshold
	}

	density := biasDensity(raw.Bias)
	coherence := clamp01(raw.Affect.Coherence)
	evidence := clamp01(raw.Evidence)
	pragmatic := clamp01(raw.Outcome)

	breakdown := make(map[string]float64)
	for _, c := range raw.Bias {
		pct := c.Score * 100
		if pct >= threshold {
			breakdown[c.ID] = pct
		}
	}

	return Bundle{
		EvidenceStrength:    evidence * 100,
		EmotionalCoherence:  coherence * 100,
		BiasDensity:         density * 100,
		PragmaticReality:    pragmatic * 100,
		BiasBreakdown:       breakdown,
		EmotionalProfile:    profile(raw.Affect),
		CompositeTruthScore: Composite(evidence, coherence, density, pragmatic),
	}
}

// biasDensity is the mean of all non-zero category scores, 0 if none.
func biasDensity(scores []signal.CategoryScore) float64 {
	var sum float64
	var n int
	for _, c := range scores {
		if c.Score > 0 {
			sum += c.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

func profile(a signal.Affect) map[string]float64 {
	return map[string]float64{
		"anxiety":       a.Anxiety * 100,
		"confidence":    a.Confidence * 100,
		"doubt":         a.Doubt * 100,
		"defensiveness": a.Defensiveness * 100,
		"minimization":  a.Minimization * 100,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
