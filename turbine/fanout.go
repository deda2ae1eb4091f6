package turbine

// ComputeRetransmitPeers partitions the shuffled peer indices (with self
// already removed, see ShufflePeersAndIndex) into a neighbor/children
// fanout given fanout width f and self's original shuffled position
// myPos (spec.md §4.4).
//
// Layer L = floor(myPos / f). Neighbors are up to f consecutive indices
// starting at L*f. Children are up to f consecutive indices starting at
// (posInLayer)*f within the next layer's index range — the Open Question
// #2 decision recorded in DESIGN.md, since the original's
// compute_retransmit_peers contract was not present in the retrieved
// source. Both slices are clamped to indexes' bounds and therefore may be
// shorter than f in a partial layer.
func ComputeRetransmitPeers(f int, myPos int, indexes []int) (neighbors, children []int) {
	if f <= 0 || len(indexes) == 0 {
		return nil, nil
	}

	layer := myPos / f
	posInLayer := myPos % f

	neighborStart := layer * f
	neighbors = sliceClamped(indexes, neighborStart, f)

	childrenStart := (layer+1)*f + posInLayer*f
	children = sliceClamped(indexes, childrenStart, f)

	return neighbors, children
}

// sliceClamped returns up to n elements of s starting at start, or nil if
// start is out of bounds.
func sliceClamped(s []int, start, n int) []int {
	if start < 0 || start >= len(s) {
		return nil
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	out := make([]int, end-start)
	copy(out, s[start:end])
	return out
}
