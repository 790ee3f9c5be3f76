package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s → %s\n\nNo changes detected.\n", r.OldRef, r.NewRef)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s → %s\n", r.OldRef, r.NewRef)
	fmt.Fprintf(&b, "  sha256: %s → %s\n", short(r.OldSHA256), short(r.NewSHA256))

	terms := filterChanges(r.Changes, "outputs.forbidden_terms")
	scalar := excludeChanges(r.Changes, "outputs.forbidden_terms")

	if len(scalar) > 0 {
		b.WriteString("\n")
		for _, c := range scalar {
			fmt.Fprintf(&b, "  %-52s %s → %s", c.Field+":", c.Old, c.New)
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(r.PlatformChanges) > 0 {
		b.WriteString("\n  Platforms:\n")
		for _, pc := range r.PlatformChanges {
			mark := "~"
			switch pc.Type {
			case "added":
				mark = "+"
			case "removed":
				mark = "-"
			}
			fmt.Fprintf(&b, "    %s %-16s %s → %s", mark, pc.Platform, pc.Old, pc.New)
			if pc.Detail != "" {
				fmt.Fprintf(&b, "  [%s]", pc.Detail)
			}
			b.WriteString("\n")
		}
	}

	if len(terms) > 0 {
		b.WriteString("\n  Forbidden terms:\n")
		for _, c := range terms {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "    + %s\n", c.New)
			case "removed":
				fmt.Fprintf(&b, "    - %s\n", c.Old)
			}
		}
	}

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func filterChanges(changes []Change, field string) []Change {
	var out []Change
	for _, c := range changes {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

func excludeChanges(changes []Change, field string) []Change {
	var out []Change
	for _, c := range changes {
		if c.Field != field {
			out = append(out, c)
		}
	}
	return out
}
