package correlate

import "patchdiff/internal/program"

// Confidence values.
const (
	ConfidenceSymbolMatch = 10.0
	ConfidenceBaseline    = 1.0
)

// Confidence scores symbol agreement: exact, case-sensitive name equality
// yields ConfidenceSymbolMatch, anything else ConfidenceBaseline.
func Confidence(a, b program.Function) float64 {
	return nameConfidence(a.Name(), b.Name())
}

func nameConfidence(a, b string) float64 {
	if a == b {
		return ConfidenceSymbolMatch
	}
	return ConfidenceBaseline
}
