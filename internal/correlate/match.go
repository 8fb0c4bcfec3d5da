package correlate

import (
	"cmp"
	"slices"

	"patchdiff/internal/program"
)

// Match is a scored function pair.
type Match struct {
	Source      program.Function
	Destination program.Function
	Similarity  float64
	Confidence  float64
}

// MatchSet is the ordered result of one run. Every source or destination
// function may appear in several matches.
type MatchSet []Match

// compareMatches orders by descending similarity, then descending
// confidence, then source address, then destination address.
func compareMatches(a, b Match) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Source.Address(), b.Source.Address()); c != 0 {
		return c
	}
	return cmp.Compare(a.Destination.Address(), b.Destination.Address())
}

func (ms MatchSet) sort() {
	slices.SortStableFunc(ms, compareMatches)
}

// BestPerSource keeps the highest ranked match of each source function,
// preserving the set's order. Correlate never applies this itself.
// Sources are compared by identity, so they must be comparable
// program.Function values, as Correlate already requires.
func (ms MatchSet) BestPerSource() MatchSet {
	seen := make(map[program.Function]bool)
	var out MatchSet
	for _, m := range ms {
		if seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		out = append(out, m)
	}
	return out
}
