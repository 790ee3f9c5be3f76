package analyze

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTranscriptUnresolvedItem(t *testing.T) {
	f := Transcript("Counsel noted [UNRESOLVED: missing exhibit 4] before recess.")
	want := []string{"missing exhibit 4"}
	if diff := cmp.Diff(want, f.UnresolvedItems); diff != "" {
		t.Errorf("unresolved items mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscriptUnresolvedMultiline(t *testing.T) {
	text := "a [unresolved:\n  first\n] b [UNRESOLVED: " + strings.Repeat("x", 300) + "]"
	f := Transcript(text)
	if len(f.UnresolvedItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(f.UnresolvedItems))
	}
	if f.UnresolvedItems[0] != "first" {
		t.Errorf("expected trimmed item, got %q", f.UnresolvedItems[0])
	}
	if n := len([]rune(f.UnresolvedItems[1])); n != maxUnresolvedItemRunes {
		t.Errorf("expected item cut to %d runes, got %d", maxUnresolvedItemRunes, n)
	}
}

func TestTranscriptPhase(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", PhaseEvidenceAssembly},
		{"evidence heavy", "exhibit 1, testimony, the record", PhaseEvidenceAssembly},
		{"abstraction", "i feel it seems like maybe", PhaseNarrativeSeeding},
		{"authority", "the judge said it is required, an instruction", PhaseSoftAlignment},
		{
			"convergence",
			strings.Repeat("the judge said so. ", 6) + "i feel maybe",
			PhaseConvergence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transcript(tt.text).PhaseEstimate; got != tt.want {
				t.Errorf("phase = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranscriptCountsCaseInsensitive(t *testing.T) {
	f := Transcript("EXHIBIT A and Exhibit B. The Judge Said no.")
	want := CueCounts{AuthorityCues: 1, EvidenceRefs: 2}
	if f.Counts != want {
		t.Errorf("counts = %+v, want %+v", f.Counts, want)
	}
}

func TestIntegrityNotes(t *testing.T) {
	f := Forensics{Counts: CueCounts{AuthorityCues: 6, EvidenceRefs: 1, AbstractionMarkers: 2}}
	want := []string{NoteAuthorityOverEvidence, NoteAbstractionOverEvidence}
	if diff := cmp.Diff(want, f.IntegrityNotes()); diff != "" {
		t.Errorf("notes mismatch (-want +got):\n%s", diff)
	}
	if notes := (Forensics{}).IntegrityNotes(); len(notes) != 0 {
		t.Errorf("expected no notes, got %v", notes)
	}
}

func TestVenueSortsThemes(t *testing.T) {
	data := []byte(`{"venue":"County","themes":[
		{"theme":"b","salience":3},
		{"theme":"a","salience":3},
		{"theme":"c","salience":5,"notes":"high"}]}`)
	m, err := Venue(data)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, th := range m.Themes {
		got = append(got, th.Theme)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, got); diff != "" {
		t.Errorf("theme order mismatch (-want +got):\n%s", diff)
	}
	if m.VolatilityZones == nil {
		t.Error("expected empty volatility zones, not nil")
	}
}

func TestVenueInvalid(t *testing.T) {
	if _, err := Venue([]byte("{")); err == nil {
		t.Error("expected parse error")
	}
}

func TestResponseDistribution(t *testing.T) {
	jsonl := `{"juror_label":"J1","question_id":"Q1","question_text":"Media?","answer_text":"  none  ","timestamp":"t1"}

{"juror_label":"J2","question_id":"Q1","question_text":"Media?","answer_text":"news","timestamp":"t2"}
{"juror_label":"J1","answer_text":"ok"}
`
	events, err := LoadVoirDire(strings.NewReader(jsonl))
	if err != nil {
		t.Fatal(err)
	}
	d := ResponseDistribution([]Row{{"juror_label": "J1"}}, events)

	want := Distribution{
		SJQRespondents: 1,
		Questions: []QuestionResponses{
			{QuestionID: "Q1", QuestionText: "Media?", Answers: []Answer{
				{Juror: "J1", Answer: "none", Timestamp: "t1"},
				{Juror: "J2", Answer: "news", Timestamp: "t2"},
			}},
			{QuestionID: "Q?", Answers: []Answer{{Juror: "J1", Answer: "ok"}}},
		},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("distribution mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadVoirDireBadLine(t *testing.T) {
	_, err := LoadVoirDire(strings.NewReader("{}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}
}

func TestDisclosureFlags(t *testing.T) {
	sjq, err := LoadCSV(strings.NewReader("juror_label,litigation_history_declared\nJ1,no\nJ2,yes\nJ3,\nJ4,no\n"))
	if err != nil {
		t.Fatal(err)
	}
	records, err := LoadCSV(strings.NewReader("juror_label,field,value\nJ1,litigation_history,2019 civil suit\nJ2,litigation_history,none\nJ3,address,x\nJ4,litigation_history,0\n"))
	if err != nil {
		t.Fatal(err)
	}

	want := []DisclosureFlag{
		{Juror: "J1", Field: "litigation_history", Declared: "no", PublicRecord: "indicates history", Note: disclosureNote},
		{Juror: "J2", Field: "litigation_history", Declared: "yes", PublicRecord: "indicates none", Note: disclosureNote},
	}
	if diff := cmp.Diff(want, DisclosureFlags(sjq, records)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	if flags := DisclosureFlags(sjq, nil); len(flags) != 0 {
		t.Errorf("expected no flags without records, got %v", flags)
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	rows, err := LoadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestSocial(t *testing.T) {
	data := []byte(`[
		{"platform":"Reddit","url":"u1","public_text":"post one","tags":["law","media"]},
		{"platform":"reddit","url":"u2","public_text":"","tags":["media"]},
		{"platform":"facebook","url":"u3","public_text":"hidden","tags":["law"]}
	]`)
	permit := func(p string) (bool, string) {
		if p == "facebook" {
			return false, "not_configured"
		}
		return true, "ok"
	}
	s, err := Social(data, permit)
	if err != nil {
		t.Fatal(err)
	}
	want := &SocialSummary{
		TopicExposureCounts:     []TopicCount{{Topic: "media", Count: 2}, {Topic: "law", Count: 1}},
		DeclaredPositionsLedger: []Snippet{{Platform: "Reddit", URL: "u1", Snippet: "post one"}},
		ExcludedByPolicy:        []Exclusion{{Platform: "facebook", Reason: "not_configured", Items: 1}},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("social summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSocialSnippetCut(t *testing.T) {
	data := []byte(`[{"platform":"x","public_text":"` + strings.Repeat("é", 400) + `"}]`)
	s, err := Social(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(s.DeclaredPositionsLedger[0].Snippet)); n != maxSnippetRunes {
		t.Errorf("snippet runes = %d, want %d", n, maxSnippetRunes)
	}
}
