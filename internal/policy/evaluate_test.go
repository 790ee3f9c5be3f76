package policy

import "testing"

func docWith(platforms map[string]PlatformRule, block bool) *Document {
	return &Document{
		Name:    "test",
		Version: "1.0",
		Rules: Rules{
			Platforms:      platforms,
			JudgeOverrides: JudgeOverrides{BlockPlatformsWithNotifications: block},
		},
	}
}

func TestEvaluateOrder(t *testing.T) {
	tests := []struct {
		name    string
		rule    *PlatformRule
		block   bool
		allowed bool
		reason  Reason
	}{
		{
			name:   "not configured",
			reason: ReasonNotConfigured,
		},
		{
			name:   "override before notification risk",
			rule:   &PlatformRule{PassiveViewPublic: true, NotificationRisk: RiskHigh},
			block:  true,
			reason: ReasonBlockedByOverride,
		},
		{
			name:   "override before passive view",
			rule:   &PlatformRule{PassiveViewPublic: false, NotificationRisk: RiskMedium},
			block:  true,
			reason: ReasonBlockedByOverride,
		},
		{
			name:    "override ignores low risk",
			rule:    &PlatformRule{PassiveViewPublic: true, NotificationRisk: RiskLow},
			block:   true,
			allowed: true,
			reason:  ReasonOK,
		},
		{
			name:   "passive view disabled",
			rule:   &PlatformRule{PassiveViewPublic: false, NotificationRisk: RiskLow},
			reason: ReasonPassiveViewDisabled,
		},
		{
			name:   "notification risk not allowed",
			rule:   &PlatformRule{PassiveViewPublic: true, NotificationRisk: RiskMedium},
			reason: ReasonNotificationRisk,
		},
		{
			name:    "notification risk explicitly allowed",
			rule:    &PlatformRule{PassiveViewPublic: true, NotificationRisk: RiskHigh, AllowIfNotificationPossible: true},
			allowed: true,
			reason:  ReasonOK,
		},
		{
			name:    "no risk",
			rule:    &PlatformRule{PassiveViewPublic: true},
			allowed: true,
			reason:  ReasonOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platforms := map[string]PlatformRule{}
			if tt.rule != nil {
				platforms["twitter"] = *tt.rule
			}
			result := Evaluate(docWith(platforms, tt.block), "twitter")
			if result.Allowed != tt.allowed {
				t.Errorf("expected allowed=%v, got %v (%s)", tt.allowed, result.Allowed, result.Reason)
			}
			if result.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, result.Reason)
			}
		})
	}
}

func TestOverrideCheckedBeforeNotificationRisk(t *testing.T) {
	doc := docWith(map[string]PlatformRule{
		"twitter": {PassiveViewPublic: true, NotificationRisk: RiskHigh, AllowIfNotificationPossible: false},
	}, true)

	result := Evaluate(doc, "twitter")
	if result.Allowed {
		t.Fatal("expected deny")
	}
	if result.Reason != ReasonBlockedByOverride {
		t.Fatalf("expected blocked_by_override, got %s", result.Reason)
	}
	if result.PolicyID != "platform.twitter.blocked_by_override" {
		t.Errorf("unexpected policy id %s", result.PolicyID)
	}
}

func TestEvaluateNilDocument(t *testing.T) {
	result := Evaluate(nil, "twitter")
	if result.Allowed || result.Reason != ReasonNotConfigured {
		t.Fatalf("expected not_configured deny, got %+v", result)
	}
}

func TestEvaluateAllSorted(t *testing.T) {
	doc := docWith(map[string]PlatformRule{
		"twitter":  {PassiveViewPublic: true, NotificationRisk: RiskLow},
		"facebook": {PassiveViewPublic: true, NotificationRisk: RiskMedium},
		"linkedin": {PassiveViewPublic: false},
	}, false)

	results := EvaluateAll(doc)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []struct {
		platform string
		reason   Reason
	}{
		{"facebook", ReasonNotificationRisk},
		{"linkedin", ReasonPassiveViewDisabled},
		{"twitter", ReasonOK},
	}
	for i, w := range want {
		if results[i].Platform != w.platform || results[i].Reason != w.reason {
			t.Errorf("result %d: expected %s/%s, got %s/%s",
				i, w.platform, w.reason, results[i].Platform, results[i].Reason)
		}
	}
}

func TestContactNeverAllowed(t *testing.T) {
	if ContactAllowed() {
		t.Fatal("direct contact must never be allowed")
	}
}
