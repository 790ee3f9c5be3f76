package vocab

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/maat/internal/score"
	"github.com/ppiankov/maat/internal/signal"
)

func TestSummarizeClosureStatement(t *testing.T) {
	a := New(Config{})
	s := a.Summarize("I'm fine, everyone goes through this")

	for _, want := range []string{"Observed closure-assertion language", "Observed normalization language"} {
		found := false
		for _, f := range s.ConsistencyFlags {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected flag %q in %v", want, s.ConsistencyFlags)
		}
	}
	if a.ContainsForbidden(s) {
		t.Errorf("summary carries forbidden term: %+v", s)
	}

	wantGaps := []string{GapNoExternalData, GapUniversalQuantifier}
	if diff := cmp.Diff(wantGaps, s.EvidenceGaps); diff != "" {
		t.Errorf("evidence gaps mismatch (-want +got):\n%s", diff)
	}
	wantFollowups := []string{FollowupSpecifics, FollowupPersonal}
	if diff := cmp.Diff(wantFollowups, s.RecommendedFollowups); diff != "" {
		t.Errorf("followups mismatch (-want +got):\n%s", diff)
	}
	if s.StatementDensityFlags != len(s.ConsistencyFlags) {
		t.Errorf("density flags %d != %d", s.StatementDensityFlags, len(s.ConsistencyFlags))
	}
}

func TestSanitizeContradictionCount(t *testing.T) {
	a := New(Config{})
	b := score.Bundle{
		EvidenceStrength:   60,
		EmotionalCoherence: 40,
		BiasDensity:        70,
		BiasBreakdown: map[string]float64{
			signal.SafetyProjection:   90, // "assertion"
			signal.CompetenceHalo:     70, // "without"
			signal.SocialCamouflage:   60,
			signal.ContinuityIllusion: 5, // below threshold
		},
	}
	s := a.Sanitize(b, "")
	if s.ContradictionCount != 3 {
		t.Errorf("expected 3 contradictions, got %d (%v)", s.ContradictionCount, s.ConsistencyFlags)
	}
	if len(s.ConsistencyFlags) != 3 {
		t.Errorf("expected 3 flags, got %v", s.ConsistencyFlags)
	}
}

func TestSanitizeFlagOrder(t *testing.T) {
	a := New(Config{})
	b := score.Bundle{
		EvidenceStrength: 80,
		BiasBreakdown: map[string]float64{
			signal.HyperCompetenceMask: 50,
			signal.SelfSoothing:        50,
			"zz_custom_signal":         50,
		},
	}
	got := a.Sanitize(b, "").ConsistencyFlags
	want := []string{
		"Observed minimization language pattern",
		"Observed self-sufficiency assertion",
		"Observed pattern: Zz Custom Signal",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitizeFollowupFallback(t *testing.T) {
	s := New(Config{}).Sanitize(score.Bundle{EvidenceStrength: 80}, "")
	if diff := cmp.Diff([]string{FollowupNoneNecessary}, s.RecommendedFollowups); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
	if len(s.EvidenceGaps) != 0 {
		t.Errorf("expected no gaps, got %v", s.EvidenceGaps)
	}
}

func TestSanitizeMaxItems(t *testing.T) {
	breakdown := make(map[string]float64)
	for _, c := range signal.Categories {
		breakdown[c.ID] = 100
	}
	s := New(Config{MaxItems: 4}).Sanitize(score.Bundle{BiasBreakdown: breakdown}, "")
	if len(s.ConsistencyFlags) != 4 {
		t.Errorf("expected 4 flags, got %d", len(s.ConsistencyFlags))
	}
}

func TestLabelFallbackSanitized(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{signal.SafetyProjection, "Observed closure-assertion language"},
		{"new_signal", "Observed pattern: New Signal"},
		{"<script>alert_x</script>", "Observed pattern: Scriptalert Xscript"},
		{"!!!", "Observed pattern: Unnamed"},
	}
	for _, tt := range tests {
		if got := Label(tt.id); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestIsContradictionLabel(t *testing.T) {
	counted := 0
	for _, c := range signal.Categories {
		if IsContradictionLabel(c.Label) {
			counted++
		}
	}
	// continuity_illusion, moral_compression, competence_halo, causal_fantasy,
	// safety_projection, hyper_competence_mask
	if counted != 6 {
		t.Errorf("expected 6 contradiction labels in the category table, got %d", counted)
	}
}

func TestRedactionPass(t *testing.T) {
	a := New(Config{ExtraForbidden: []string{"Observed normalization"}})
	s := a.Summarize("everyone goes through this")
	for _, f := range s.ConsistencyFlags {
		if strings.Contains(strings.ToLower(f), "observed normalization") {
			t.Errorf("extra forbidden term survived: %q", f)
		}
	}
	if !strings.Contains(strings.Join(s.ConsistencyFlags, "|"), RedactionMarker) {
		t.Errorf("expected redaction marker in %v", s.ConsistencyFlags)
	}
}

func TestRedactorLongestFirst(t *testing.T) {
	r := newRedactor(DefaultForbiddenTerms)
	if got := r.redact("Delusional claims"); got != RedactionMarker+" claims" {
		t.Errorf("got %q", got)
	}
}

func TestDegradedSummary(t *testing.T) {
	s := DegradedSummary()
	if !s.Degraded() || s.Error != ErrorAnalysisUnavailable {
		t.Errorf("unexpected degraded summary %+v", s)
	}
}

func TestSummarizeRecoversPanic(t *testing.T) {
	a := New(Config{})
	a.redactor = nil // dereferenced inside Sanitize
	s := a.Summarize("anything at all")
	if !s.Degraded() {
		t.Fatalf("expected degraded summary, got %+v", s)
	}
	if diff := cmp.Diff(DegradedSummary(), s); diff != "" {
		t.Errorf("degraded summary mismatch:\n%s", diff)
	}
}

func FuzzClosedVocabulary(f *testing.F) {
	f.Add("I'm fine, everyone goes through this")
	f.Add("he is a delusional liar and a manipulator, the trauma and abuse caused it")
	f.Add("I think I know I believe it will work, at least it could be worse")
	f.Add("")
	a := New(Config{})
	f.Fuzz(func(t *testing.T, text string) {
		s := a.Summarize(text)
		if a.ContainsForbidden(s) {
			t.Fatalf("forbidden term in summary for %q: %+v", text, s)
		}
		if len(s.RecommendedFollowups) == 0 {
			t.Fatal("followups must never be empty")
		}
	})
}
