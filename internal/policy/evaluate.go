package policy

import "fmt"

// Reason explains a platform permission decision.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonNotConfigured       Reason = "not_configured"
	ReasonBlockedByOverride   Reason = "blocked_by_override"
	ReasonPassiveViewDisabled Reason = "passive_view_disabled"
	ReasonNotificationRisk    Reason = "notification_risk"
)

// Result is the outcome of evaluating one platform against a document.
type Result struct {
	Platform string `json:"platform"`
	Allowed  bool   `json:"allowed"`
	Reason   Reason `json:"reason"`
	PolicyID string `json:"policy_id"`
}

// Evaluate decides whether data from platform may be used under doc.
//
// Evaluation order (must not be changed, first match wins):
//  1. Platform not configured -> deny
//  2. Judge override blocks medium/high notification risk -> deny
//  3. Passive public viewing disabled -> deny
//  4. Medium/high notification risk not explicitly allowed -> deny
//  5. Allow
func Evaluate(doc *Document, platform string) Result {
	deny := func(reason Reason) Result {
		return Result{
			Platform: platform,
			Reason:   reason,
			PolicyID: fmt.Sprintf("platform.%s.%s", platform, reason),
		}
	}

	if doc == nil {
		return deny(ReasonNotConfigured)
	}

	// Step 1
	rule, ok := doc.Rules.Platforms[platform]
	if !ok {
		return deny(ReasonNotConfigured)
	}

	// Step 2: override is checked before the platform's own flags
	if doc.Rules.JudgeOverrides.BlockPlatformsWithNotifications && rule.NotificationRisk.Elevated() {
		return deny(ReasonBlockedByOverride)
	}

	// Step 3
	if !rule.PassiveViewPublic {
		return deny(ReasonPassiveViewDisabled)
	}

	// Step 4
	if rule.NotificationRisk.Elevated() && !rule.AllowIfNotificationPossible {
		return deny(ReasonNotificationRisk)
	}

	return Result{
		Platform: platform,
		Allowed:  true,
		Reason:   ReasonOK,
		PolicyID: fmt.Sprintf("platform.%s.allow", platform),
	}
}

// EvaluateAll evaluates every configured platform, sorted by name.
func EvaluateAll(doc *Document) []Result {
	if doc == nil {
		return nil
	}
	names := doc.Platforms()
	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, Evaluate(doc, name))
	}
	return results
}

// ContactAllowed reports whether direct contact with a subject is permitted.
// It is always false and is intentionally not a policy field.
func ContactAllowed() bool {
	return false
}
