package firewall

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateCausation(t *testing.T) {
	vs := New().Validate("this proves the witness manipulated the timeline")
	if len(vs) == 0 {
		t.Fatal("expected violations")
	}
	found := false
	for _, v := range vs {
		if v.Kind == KindCausation && v.String() == "forbidden_causation_language" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected causation violation, got %v", vs)
	}
}

func TestValidateCausationWordBoundary(t *testing.T) {
	if vs := New().Validate("the unintended effect was uncaused"); len(vs) != 0 {
		t.Errorf("expected no violations for embedded words, got %v", vs)
	}
}

func TestValidateForbiddenTerms(t *testing.T) {
	vs := New().Validate("Witness MBTI type suggests a PREDICTION of diagnosis.")
	got := Codes(vs)
	want := []string{"forbidden_term:mbti", "forbidden_term:predict", "forbidden_term:prediction", "forbidden_term:diagnosis"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateClean(t *testing.T) {
	text := "## Process Timeline\nObserved phase estimate: **Evidence Assembly**."
	if vs := New().Validate(text); len(vs) != 0 {
		t.Errorf("expected pass, got %v", vs)
	}
}

func TestValidateExtraTerms(t *testing.T) {
	fw := New([]string{"Hunch", " "}, []string{"hunch", "gut feeling"})
	if n := len(fw.Terms()); n != len(DefaultForbiddenTerms)+2 {
		t.Errorf("expected deduplicated extras, got %d terms", n)
	}
	vs := fw.Validate("A hunch. Another hunch and a gut feeling.")
	if len(vs) != 3 {
		t.Fatalf("expected 3 violations, got %v", vs)
	}
	for i := 1; i < len(vs); i++ {
		if vs[i].Offset < vs[i-1].Offset {
			t.Errorf("violations not ordered by offset: %v", vs)
		}
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{Kind: KindForbiddenTerm, Term: "trauma"}
	if v.String() != "forbidden_term:trauma" {
		t.Errorf("got %q", v.String())
	}
}

func FuzzValidate(f *testing.F) {
	f.Add("this proves the witness manipulated the timeline")
	f.Add("Observed closure-assertion language")
	f.Add("")
	fw := New()
	f.Fuzz(func(t *testing.T, text string) {
		vs := fw.Validate(text)
		lower := strings.ToLower(text)
		for _, v := range vs {
			if v.Offset < 0 || v.Offset > len(lower) {
				t.Fatalf("offset out of range: %+v", v)
			}
			if v.Kind == KindForbiddenTerm && !strings.HasPrefix(lower[v.Offset:], v.Term) {
				t.Fatalf("violation does not point at term: %+v", v)
			}
		}
		clean := true
		for _, term := range fw.Terms() {
			if strings.Contains(lower, term) {
				clean = false
			}
		}
		if clean && causationRe.MatchString(lower) {
			clean = false
		}
		if clean != (len(vs) == 0) {
			t.Fatalf("validate disagrees with direct scan for %q: %v", text, vs)
		}
	})
}
