package vocab

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/score"
	"github.com/ppiankov/maat/internal/signal"
)

// Defaults for list sizes.
const (
	DefaultMaxItems   = 20
	maxGeneratedItems = 10
)

// ErrorAnalysisUnavailable marks a degraded summary.
const ErrorAnalysisUnavailable = "analysis_unavailable"

// Summary is the court-safe projection of a SignalBundle.
type Summary struct {
	CoherenceScore        float64  `json:"coherence_score"`
	TruthGradient         float64  `json:"truth_gradient"`
	ConsistencyFlags      []string `json:"consistency_flags"`
	ContradictionCount    int      `json:"contradiction_count"`
	EvidenceGaps          []string `json:"evidence_gaps"`
	RecommendedFollowups  []string `json:"recommended_followups"`
	EvidenceStrengthPct   float64  `json:"evidence_strength_pct"`
	StatementDensityFlags int      `json:"statement_density_flags"`
	Error                 string   `json:"error,omitempty"`
}

// Degraded reports whether the summary carries only an error marker.
func (s Summary) Degraded() bool { return s.Error != "" }

// Strings returns every string field in emission order.
func (s Summary) Strings() []string {
	out := make([]string, 0, len(s.ConsistencyFlags)+len(s.EvidenceGaps)+len(s.RecommendedFollowups)+1)
	out = append(out, s.ConsistencyFlags...)
	out = append(out, s.EvidenceGaps...)
	out = append(out, s.RecommendedFollowups...)
	if s.Error != "" {
		out = append(out, s.Error)
	}
	return out
}

// Config configures an Adapter. Zero values select defaults.
type Config struct {
	Threshold         float64  // minimum 0-100 category score surfaced as a flag
	MaxItems          int      // cap for each emitted list
	LengthFactorFloor float64  // passed to the signal extractor
	ExtraForbidden    []string // appended to DefaultForbiddenTerms
	Logger            *slog.Logger
}

// Adapter runs extraction and synthesis and translates the result into a
// Summary.
type Adapter struct {
	extractor   *signal.Extractor
	synthesizer *score.Synthesizer
	threshold   float64
	maxItems    int
	redactor    *redactor
	logger      *slog.Logger
}

// New creates an adapter from cfg.
func New(cfg Config) *Adapter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = score.DefaultInclusionThreshold
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	terms := append(append([]string{}, DefaultForbiddenTerms...), cfg.ExtraForbidden...)
	return &Adapter{
		extractor:   &signal.Extractor{LengthFactorFloor: cfg.LengthFactorFloor},
		synthesizer: &score.Synthesizer{InclusionThreshold: cfg.Threshold},
		threshold:   cfg.Threshold,
		maxItems:    cfg.MaxItems,
		redactor:    newRedactor(terms),
		logger:      logging.OrDiscard(cfg.Logger),
	}
}

// Analyze runs the extractor and synthesizer over text.
func (a *Adapter) Analyze(text string) score.Bundle {
	return a.synthesizer.Synthesize(a.extractor.Extract(text))
}

// Summarize analyzes text and sanitizes the result. A failure anywhere in
// scoring yields a degraded summary; no failure detail reaches the output.
func (a *Adapter) Summarize(text string) (s Summary) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("statement analysis degraded", "err", fmt.Sprint(r))
			s = DegradedSummary()
		}
	}()
	return a.Sanitize(a.Analyze(text), text)
}

// DegradedSummary returns the summary used when scoring fails.
func DegradedSummary() Summary {
	return Summary{Error: ErrorAnalysisUnavailable}
}

// Sanitize maps a bundle onto the closed vocabulary. rawText is only tested
// for marker presence and is never copied into the summary.
func (a *Adapter) Sanitize(b score.Bundle, rawText string) Summary {
	flags := capList(a.consistencyFlags(b.BiasBreakdown), a.maxItems)

	contradictions := 0
	for _, f := range flags {
		if IsContradictionLabel(f) {
			contradictions++
		}
	}
	if b.BiasDensity > 50 && b.EmotionalCoherence < 50 {
		contradictions++
	}

	return Summary{
		CoherenceScore:        round(clamp01(b.EmotionalCoherence/100), 4),
		TruthGradient:         round(clamp01(b.CompositeTruthScore), 4),
		ConsistencyFlags:      a.redactor.redactAll(flags),
		ContradictionCount:    contradictions,
		EvidenceGaps:          a.redactor.redactAll(capList(evidenceGaps(b.EvidenceStrength, rawText), a.maxItems)),
		RecommendedFollowups:  a.redactor.redactAll(capList(followups(b.BiasBreakdown, b.EvidenceStrength), a.maxItems)),
		EvidenceStrengthPct:   round(b.EvidenceStrength, 1),
		StatementDensityFlags: len(flags),
	}
}

// ContainsForbidden reports whether any string of s carries a forbidden term.
func (a *Adapter) ContainsForbidden(s Summary) bool {
	for _, v := range s.Strings() {
		if a.redactor.contains(v) {
			return true
		}
	}
	return false
}

// consistencyFlags emits one label per category at or above the threshold,
// in category table order, then any unknown identifiers sorted.
func (a *Adapter) consistencyFlags(breakdown map[string]float64) []string {
	var flags []string
	seen := make(map[string]bool, len(breakdown))
	for _, c := range signal.Categories {
		seen[c.ID] = true
		if v, ok := breakdown[c.ID]; ok && v >= a.threshold {
			flags = append(flags, Label(c.ID))
		}
	}

	var unknown []string
	for id, v := range breakdown {
		if !seen[id] && v >= a.threshold {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		flags = append(flags, Label(id))
	}
	return flags
}

var subjectiveCertainty = regexp.MustCompile(`\bi know\b|\bi believe\b|\bi think\b`)

func evidenceGaps(evidence float64, rawText string) []string {
	var gaps []string
	if evidence < 50 {
		gaps = append(gaps, GapNoExternalData)
	}
	if evidence < 30 {
		gaps = append(gaps, GapNoTemporalDetail)
	}

	text := signal.Normalize(rawText)
	if strings.Contains(text, "always") || strings.Contains(text, "never") {
		gaps = append(gaps, GapAbsoluteTerms)
	}
	if strings.Contains(text, "everyone") || strings.Contains(text, "nobody") {
		gaps = append(gaps, GapUniversalQuantifier)
	}
	if subjectiveCertainty.MatchString(text) {
		gaps = append(gaps, GapSubjectiveCertainty)
	}
	return capList(gaps, maxGeneratedItems)
}

func followups(breakdown map[string]float64, evidence float64) []string {
	var out []string
	if evidence < 40 {
		out = append(out, FollowupSpecifics)
	}
	if breakdown[signal.PredictiveInflation] > 10 {
		out = append(out, FollowupFutureBasis)
	}
	if breakdown[signal.ComparativeCushioning] > 10 {
		out = append(out, FollowupDirect)
	}
	if breakdown[signal.SocialCamouflage] > 10 {
		out = append(out, FollowupPersonal)
	}
	if len(out) == 0 {
		out = append(out, FollowupNoneNecessary)
	}
	return capList(out, maxGeneratedItems)
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	if in == nil {
		return []string{}
	}
	return in
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
