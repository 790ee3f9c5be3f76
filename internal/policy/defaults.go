package policy

// DefaultDocumentYAML returns a commented policy document for `maat policy init`.
func DefaultDocumentYAML() string {
	return `# maat policy document
# Generated by: maat policy init
#
# A stored document is never edited. Add a new document to supersede it;
# the most recently added document is the active one for the case.
#
# Platform evaluation order (cannot be changed):
#   1. Platform not listed below -> deny (not_configured)
#   2. judge_overrides.block_platforms_with_notifications and
#      notification_risk medium/high -> deny (blocked_by_override)
#   3. passive_view_public false -> deny (passive_view_disabled)
#   4. notification_risk medium/high and
#      allow_if_notification_possible false -> deny (notification_risk)
#   5. allow
#
# Direct contact with any subject is never permitted and cannot be configured.

name: default
version: "1.0"

# Per-platform permissions.
#   passive_view_public: public content may be viewed without an account action
#   notification_risk: none | low | medium | high
#   allow_if_notification_possible: permit medium/high risk platforms anyway
platforms:
  twitter:
    passive_view_public: true
    notification_risk: low
    allow_if_notification_possible: false
  linkedin:
    passive_view_public: true
    notification_risk: high
    allow_if_notification_possible: false
  facebook:
    passive_view_public: true
    notification_risk: medium
    allow_if_notification_possible: false

judge_overrides:
  block_platforms_with_notifications: true

# Terms that must never appear in a rendered report, in addition to the
# built-in diagnostic and predictive vocabulary.
outputs:
  forbidden_terms: []
`
}
