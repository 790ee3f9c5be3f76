package daemon

import (
	"path/filepath"
	"testing"
)

func TestParseDrop(t *testing.T) {
	inbox := "/srv/inbox"
	d, err := ParseDrop(inbox, filepath.Join(inbox, "case-1", "transcript", "day1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if d.CaseID != "case-1" || d.Type != "transcript" || d.Name != "day1.txt" {
		t.Errorf("unexpected drop %+v", d)
	}

	bad := []string{
		filepath.Join(inbox, "day1.txt"),
		filepath.Join(inbox, "case-1", "day1.txt"),
		filepath.Join(inbox, "case 1", "transcript", "day1.txt"),
		filepath.Join(inbox, "case-1", "email", "msg.eml"),
		filepath.Join(inbox, "case-1", "venue", ".hidden.json"),
		filepath.Join(inbox, "case-1", "venue", "v.json.tmp"),
		filepath.Join(inbox, "case-1", "venue", "x", "v.json"),
		"/elsewhere/case-1/venue/v.json",
	}
	for _, p := range bad {
		if _, err := ParseDrop(inbox, p); err == nil {
			t.Errorf("ParseDrop(%q) should fail", p)
		}
	}
}

func TestDepth(t *testing.T) {
	inbox := "/srv/inbox"
	tests := map[string]int{
		inbox:                                   0,
		filepath.Join(inbox, "c"):               1,
		filepath.Join(inbox, "c", "venue"):      2,
		filepath.Join(inbox, "c", "venue", "f"): 3,
		"/srv/other":                            -1,
	}
	for p, want := range tests {
		if got := depth(inbox, p); got != want {
			t.Errorf("depth(%q) = %d, want %d", p, got, want)
		}
	}
}
