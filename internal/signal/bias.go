package signal

import "math"

// CategoryScore is the raw score of one bias category that matched at least once.
type CategoryScore struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"` // 0-1
	Matches int     `json:"matches"`
}

// lengthFactor scales raw weighted matches by text length in words.
func lengthFactor(words int, floor float64) float64 {
	return math.Max(float64(words)/100, floor)
}

// scanBias scores every category in table order. Categories without a single
// match are omitted.
func scanBias(text string, words int, floor float64) []CategoryScore {
	factor := lengthFactor(words, floor)

	var scores []CategoryScore
	for _, c := range Categories {
		matches := 0
		for _, re := range c.patterns {
			matches += len(re.FindAllStringIndex(text, -1))
		}
		if matches == 0 {
			continue
		}
		weighted := float64(matches) * c.Weight
		scores = append(scores, CategoryScore{
			ID:      c.ID,
			Score:   math.Min(1.0, weighted*factor),
			Matches: matches,
		})
	}
	return scores
}
