package analyze

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const maxSnippetRunes = 280

// SocialItem is one public post.
type SocialItem struct {
	Platform   string   `json:"platform"`
	URL        string   `json:"url"`
	PublicText string   `json:"public_text"`
	Tags       []string `json:"tags"`
}

// TopicCount is the number of items tagged with a topic.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Snippet is a verbatim excerpt of a declared position.
type Snippet struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

// Exclusion counts items dropped because their platform is not permitted.
type Exclusion struct {
	Platform string `json:"platform"`
	Reason   string `json:"reason"`
	Items    int    `json:"items"`
}

// SocialSummary is the public social section.
type SocialSummary struct {
	TopicExposureCounts     []TopicCount `json:"topic_exposure_counts"`
	DeclaredPositionsLedger []Snippet    `json:"declared_positions_ledger"`
	ExcludedByPolicy        []Exclusion  `json:"excluded_by_policy"`
}

// PermitFunc decides whether items from a platform may be used and why.
type PermitFunc func(platform string) (allowed bool, reason string)

// Social summarizes public social items. Items whose platform permit denies
// are excluded from both topic counts and snippets. A nil permit allows all.
func Social(data []byte, permit PermitFunc) (*SocialSummary, error) {
	var items []SocialItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("social: parse: %w", err)
	}

	topics := make(map[string]int)
	excluded := make(map[string]*Exclusion)
	out := &SocialSummary{
		TopicExposureCounts:     []TopicCount{},
		DeclaredPositionsLedger: []Snippet{},
		ExcludedByPolicy:        []Exclusion{},
	}

	for _, item := range items {
		platform := strings.ToLower(strings.TrimSpace(item.Platform))
		if permit != nil {
			if ok, reason := permit(platform); !ok {
				ex, seen := excluded[platform]
				if !seen {
					ex = &Exclusion{Platform: platform, Reason: reason}
					excluded[platform] = ex
				}
				ex.Items++
				continue
			}
		}
		for _, t := range item.Tags {
			topics[t]++
		}
		if text := strings.TrimSpace(item.PublicText); text != "" {
			out.DeclaredPositionsLedger = append(out.DeclaredPositionsLedger, Snippet{
				Platform: item.Platform,
				URL:      item.URL,
				Snippet:  truncateRunes(text, maxSnippetRunes),
			})
		}
	}

	for t, n := range topics {
		out.TopicExposureCounts = append(out.TopicExposureCounts, TopicCount{Topic: t, Count: n})
	}
	sort.Slice(out.TopicExposureCounts, func(i, j int) bool {
		a, b := out.TopicExposureCounts[i], out.TopicExposureCounts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Topic < b.Topic
	})

	for _, ex := range excluded {
		out.ExcludedByPolicy = append(out.ExcludedByPolicy, *ex)
	}
	sort.Slice(out.ExcludedByPolicy, func(i, j int) bool {
		return out.ExcludedByPolicy[i].Platform < out.ExcludedByPolicy[j].Platform
	})
	return out, nil
}
