package correlate

import (
	"errors"
	"fmt"
	"math"
)

// Correlator identity as shown to users.
const (
	Name        = "Bulk Instructions Match"
	Description = "Compares functions based on their included instructions without taking the order of the instructions into account."
)

// Option defaults.
const (
	DefaultSimilarityThreshold  = 0.5
	DefaultConfidenceThreshold  = 0.0
	DefaultSymbolNamesMustMatch = true
)

var (
	ErrInvalidSimilarityThreshold = errors.New("correlate: similarity threshold must be within [0,1]")
	ErrInvalidConfidenceThreshold = errors.New("correlate: confidence threshold must be a finite number")
)

// Options are the user-tunable correlation settings.
type Options struct {
	// SimilarityThreshold is the minimum bulk similarity to keep a pair.
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// ConfidenceThreshold is the minimum confidence to keep a pair.
	// Confidence is 1.0 (symbols differ) or 10.0 (symbols match).
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// SymbolNamesMustMatch drops every pair whose names differ before
	// any scoring threshold is applied.
	SymbolNamesMustMatch bool `json:"symbol_names_must_match"`
}

// DefaultOptions returns the default settings.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:  DefaultSimilarityThreshold,
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		SymbolNamesMustMatch: DefaultSymbolNamesMustMatch,
	}
}

// Validate rejects thresholds that cannot be meaningfully applied.
// Out-of-range values are never clamped.
func (o Options) Validate() error {
	s := o.SimilarityThreshold
	if math.IsNaN(s) || s < 0 || s > 1 {
		return fmt.Errorf("%w, got %v", ErrInvalidSimilarityThreshold, s)
	}
	if c := o.ConfidenceThreshold; math.IsNaN(c) || math.IsInf(c, 0) {
		return fmt.Errorf("%w, got %v", ErrInvalidConfidenceThreshold, c)
	}
	return nil
}
