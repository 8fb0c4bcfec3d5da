package bulk

// Similarity returns the multiset overlap of a and b: the sum of per-key
// minimum counts divided by the sum of per-key maximum counts. Two empty
// bulks are identical (1.0). The cost is one map lookup per distinct key of
// the smaller bulk.
func Similarity(a, b *Bulk) float64 {
	if a.total == 0 && b.total == 0 {
		return 1.0
	}
	small, large := a, b
	if len(large.counts) < len(small.counts) {
		small, large = large, small
	}

	shared := 0
	for k, n := range small.counts {
		if m, ok := large.counts[k]; ok {
			shared += min(n, m)
		}
	}
	// sum(max) = sum(a) + sum(b) - sum(min)
	union := a.total + b.total - shared
	return float64(shared) / float64(union)
}
