package signal

import "strings"

// DefaultLengthFactorFloor keeps short statements from being scaled toward zero.
const DefaultLengthFactorFloor = 1.0

// NoLengthFactorFloor disables the floor: the length factor is words/100.
const NoLengthFactorFloor = -1.0

// Raw is the unscaled output of one extraction pass.
type Raw struct {
	Words    int             `json:"words"`
	Bias     []CategoryScore `json:"bias"`
	Affect   Affect          `json:"affect"`
	Evidence float64         `json:"evidence"` // 0-1
	Outcome  float64         `json:"outcome"`  // 0-1
}

// TotalBias is the sum of all category scores.
func (r Raw) TotalBias() float64 {
	return totalBias(r.Bias)
}

// Extractor runs the pattern scanners over a statement.
type Extractor struct {
	// LengthFactorFloor is the lower bound of the length multiplier applied
	// to weighted bias matches. Zero means DefaultLengthFactorFloor; any
	// negative value means no floor.
	LengthFactorFloor float64
}

// NewExtractor returns an extractor with the default length factor floor.
func NewExtractor() *Extractor {
	return &Extractor{LengthFactorFloor: DefaultLengthFactorFloor}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// Normalize lowercases text and folds typographic apostrophes so that
// patterns such as "i'm fine" match curly-quoted input.
func Normalize(text string) string {
	return apostrophes.Replace(strings.ToLower(text))
}

// Extract scans text and returns raw signals. Empty text yields zero bias,
// default coherence and the default evidence score.
func (e *Extractor) Extract(text string) Raw {
	floor := DefaultLengthFactorFloor
	if e != nil {
		switch {
		case e.LengthFactorFloor < 0:
			floor = 0
		case e.LengthFactorFloor > 0:
			floor = e.LengthFactorFloor
		}
	}

	norm := Normalize(text)
	words := len(strings.Fields(norm))

	bias := scanBias(norm, words, floor)
	return Raw{
		Words:    words,
		Bias:     bias,
		Affect:   scanAffect(norm, words),
		Evidence: scanEvidence(norm),
		Outcome:  scanOutcome(norm, bias),
	}
}
