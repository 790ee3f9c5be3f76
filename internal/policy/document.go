package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVersion is used when a policy document does not declare one.
const DefaultVersion = "1.0"

// Risk is the notification risk of passively viewing a platform.
type Risk string

const (
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// UnmarshalText rejects unknown risk levels. Used by both the YAML and JSON decoders.
func (r *Risk) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch Risk(s) {
	case "", RiskNone:
		*r = RiskNone
	case RiskLow, RiskMedium, RiskHigh:
		*r = Risk(s)
	default:
		return fmt.Errorf("unknown notification_risk %q (want none, low, medium or high)", string(text))
	}
	return nil
}

// Elevated reports whether the risk is medium or high.
func (r Risk) Elevated() bool {
	return r == RiskMedium || r == RiskHigh
}

// PlatformRule holds the permissions configured for one source platform.
type PlatformRule struct {
	PassiveViewPublic           bool `yaml:"passive_view_public" json:"passive_view_public"`
	NotificationRisk            Risk `yaml:"notification_risk" json:"notification_risk"`
	AllowIfNotificationPossible bool `yaml:"allow_if_notification_possible" json:"allow_if_notification_possible"`
}

// JudgeOverrides are court-imposed restrictions layered over platform rules.
type JudgeOverrides struct {
	BlockPlatformsWithNotifications bool `yaml:"block_platforms_with_notifications" json:"block_platforms_with_notifications"`
}

// Outputs constrains the language of rendered reports.
type Outputs struct {
	ForbiddenTerms []string `yaml:"forbidden_terms" json:"forbidden_terms"`
}

// Rules is the hashed content of a policy document.
type Rules struct {
	Platforms      map[string]PlatformRule `yaml:"platforms" json:"platforms"`
	JudgeOverrides JudgeOverrides          `yaml:"judge_overrides" json:"judge_overrides"`
	Outputs        Outputs                 `yaml:"outputs" json:"outputs"`
}

// Document is an immutable, versioned policy. A revision is a new Document,
// never an edit of an existing one.
type Document struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   Rules  `json:"rules"`
}

// documentFile is the on-disk YAML layout: name and version next to the rule sections.
type documentFile struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Rules   `yaml:",inline"`
}

// Parse decodes a YAML policy document. name is used when the document has none.
func Parse(data []byte, name string) (*Document, error) {
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}

	doc := &Document{Name: f.Name, Version: f.Version, Rules: f.Rules}
	if name != "" {
		doc.Name = name
	}
	if doc.Version == "" {
		doc.Version = DefaultVersion
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadFile reads and parses a policy document from disk.
func LoadFile(path, name string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}
	return Parse(data, name)
}

// Validate checks structural constraints that YAML decoding cannot express.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("policy document: name is required")
	}
	for platform := range d.Rules.Platforms {
		if strings.TrimSpace(platform) == "" {
			return fmt.Errorf("policy document: empty platform name")
		}
	}
	for i, term := range d.Rules.Outputs.ForbiddenTerms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("policy document: outputs.forbidden_terms[%d] is empty", i)
		}
	}
	return nil
}

// canonical returns a copy of the rules with order-insensitive lists sorted.
// Maps are already key-sorted by encoding/json.
func (r Rules) canonical() Rules {
	out := r
	terms := append([]string(nil), r.Outputs.ForbiddenTerms...)
	sort.Strings(terms)
	out.Outputs.ForbiddenTerms = terms

	// An omitted risk and an explicit "none" are the same rule.
	out.Platforms = make(map[string]PlatformRule, len(r.Platforms))
	for name, p := range r.Platforms {
		if p.NotificationRisk == "" {
			p.NotificationRisk = RiskNone
		}
		out.Platforms[name] = p
	}
	return out
}

// CanonicalJSON is the serialization the content hash is computed over.
func (r Rules) CanonicalJSON() ([]byte, error) {
	return json.Marshal(r.canonical())
}

// SHA256 returns the hex content hash of the rules. Name and version are
// not hashed, so identical rules hash identically.
func (d *Document) SHA256() string {
	data, err := d.Rules.CanonicalJSON()
	if err != nil {
		// Rules contain only strings, bools and maps of them.
		panic(fmt.Sprintf("policy: canonical json: %v", err))
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Platforms returns configured platform names in sorted order.
func (d *Document) Platforms() []string {
	names := make([]string, 0, len(d.Rules.Platforms))
	for name := range d.Rules.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
