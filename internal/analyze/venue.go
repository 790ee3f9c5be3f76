package analyze

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Theme is one venue theme with a 1-5 salience.
type Theme struct {
	Theme    string  `json:"theme"`
	Salience float64 `json:"salience"`
	Notes    string  `json:"notes,omitempty"`
}

// VolatilityZone records a theme trigger observed in the venue.
type VolatilityZone struct {
	Theme    string `json:"theme"`
	Trigger  string `json:"trigger,omitempty"`
	Observed string `json:"observed,omitempty"`
}

// VenueMatrix is the venue sensitivity section.
type VenueMatrix struct {
	Venue           string           `json:"venue"`
	Themes          []Theme          `json:"themes"`
	VolatilityZones []VolatilityZone `json:"volatility_zones"`
}

// Venue parses venue JSON and orders themes by salience, highest first,
// then by name.
func Venue(data []byte) (*VenueMatrix, error) {
	var m VenueMatrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("venue: parse: %w", err)
	}
	if m.Themes == nil {
		m.Themes = []Theme{}
	}
	if m.VolatilityZones == nil {
		m.VolatilityZones = []VolatilityZone{}
	}
	sort.SliceStable(m.Themes, func(i, j int) bool {
		if m.Themes[i].Salience != m.Themes[j].Salience {
			return m.Themes[i].Salience > m.Themes[j].Salience
		}
		return m.Themes[i].Theme < m.Themes[j].Theme
	})
	return &m, nil
}
