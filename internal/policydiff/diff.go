package policydiff

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ppiankov/maat/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// PlatformChange represents a platform addition, removal, or modification,
// together with how its evaluated decision moved.
type PlatformChange struct {
	Type     string `json:"type"` // "added", "removed", "changed"
	Platform string `json:"platform"`
	Detail   string `json:"detail,omitempty"`
	Old      string `json:"old_decision,omitempty"`
	New      string `json:"new_decision,omitempty"`
}

// DiffResult holds the comparison of two policy documents.
type DiffResult struct {
	OldRef          string           `json:"old"`
	NewRef          string           `json:"new"`
	OldSHA256       string           `json:"old_sha256"`
	NewSHA256       string           `json:"new_sha256"`
	Changes         []Change         `json:"changes"`
	PlatformChanges []PlatformChange `json:"platform_changes"`
	HasChanges      bool             `json:"has_changes"`
}

// Diff compares two policy documents and returns the differences.
func Diff(old, new *policy.Document) *DiffResult {
	r := &DiffResult{
		OldRef:    ref(old),
		NewRef:    ref(new),
		OldSHA256: old.SHA256(),
		NewSHA256: new.SHA256(),
	}

	if old.Version != new.Version {
		r.Changes = append(r.Changes, Change{Field: "version", Old: old.Version, New: new.Version})
	}

	oldBlock := old.Rules.JudgeOverrides.BlockPlatformsWithNotifications
	newBlock := new.Rules.JudgeOverrides.BlockPlatformsWithNotifications
	if oldBlock != newBlock {
		r.Changes = append(r.Changes, Change{
			Field:   "judge_overrides.block_platforms_with_notifications",
			Old:     strconv.FormatBool(oldBlock),
			New:     strconv.FormatBool(newBlock),
			Comment: boolComment(newBlock),
		})
	}

	diffTerms(r, old.Rules.Outputs.ForbiddenTerms, new.Rules.Outputs.ForbiddenTerms)
	diffPlatforms(r, old, new)

	// Content hash is the final arbiter: identical rules never report changes.
	r.HasChanges = r.OldSHA256 != r.NewSHA256 || len(r.Changes) > 0
	return r
}

func ref(d *policy.Document) string {
	return fmt.Sprintf("%s@%s", d.Name, d.Version)
}

// boolComment treats enabling a restriction as stricter.
func boolComment(enabled bool) string {
	if enabled {
		return "stricter"
	}
	return "looser"
}

func decisionLabel(res policy.Result) string {
	if res.Allowed {
		return "allow"
	}
	return "deny:" + string(res.Reason)
}

func diffPlatforms(r *DiffResult, old, new *policy.Document) {
	names := make(map[string]bool)
	for name := range old.Rules.Platforms {
		names[name] = true
	}
	for name := range new.Rules.Platforms {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		oldRule, inOld := old.Rules.Platforms[name]
		newRule, inNew := new.Rules.Platforms[name]
		oldDecision := decisionLabel(policy.Evaluate(old, name))
		newDecision := decisionLabel(policy.Evaluate(new, name))

		switch {
		case !inOld:
			r.PlatformChanges = append(r.PlatformChanges, PlatformChange{
				Type: "added", Platform: name, Old: oldDecision, New: newDecision,
			})
		case !inNew:
			r.PlatformChanges = append(r.PlatformChanges, PlatformChange{
				Type: "removed", Platform: name, Old: oldDecision, New: newDecision,
			})
		default:
			detail := ruleDetail(oldRule, newRule)
			if detail == "" && oldDecision == newDecision {
				continue
			}
			r.PlatformChanges = append(r.PlatformChanges, PlatformChange{
				Type: "changed", Platform: name, Detail: detail, Old: oldDecision, New: newDecision,
			})
		}
	}
}

func ruleDetail(old, new policy.PlatformRule) string {
	detail := ""
	add := func(s string) {
		if detail != "" {
			detail += ", "
		}
		detail += s
	}
	if old.PassiveViewPublic != new.PassiveViewPublic {
		add(fmt.Sprintf("passive_view_public %t → %t", old.PassiveViewPublic, new.PassiveViewPublic))
	}
	if riskOf(old) != riskOf(new) {
		add(fmt.Sprintf("notification_risk %s → %s", riskOf(old), riskOf(new)))
	}
	if old.AllowIfNotificationPossible != new.AllowIfNotificationPossible {
		add(fmt.Sprintf("allow_if_notification_possible %t → %t",
			old.AllowIfNotificationPossible, new.AllowIfNotificationPossible))
	}
	return detail
}

func riskOf(p policy.PlatformRule) policy.Risk {
	if p.NotificationRisk == "" {
		return policy.RiskNone
	}
	return p.NotificationRisk
}

func diffTerms(r *DiffResult, oldTerms, newTerms []string) {
	oldSet := make(map[string]bool)
	for _, t := range oldTerms {
		oldSet[t] = true
	}
	newSet := make(map[string]bool)
	for _, t := range newTerms {
		newSet[t] = true
	}

	for _, t := range sortedKeys(newSet) {
		if !oldSet[t] {
			r.Changes = append(r.Changes, Change{
				Field:   "outputs.forbidden_terms",
				New:     t,
				Comment: "added",
			})
		}
	}
	for _, t := range sortedKeys(oldSet) {
		if !newSet[t] {
			r.Changes = append(r.Changes, Change{
				Field:   "outputs.forbidden_terms",
				Old:     t,
				Comment: "removed",
			})
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
