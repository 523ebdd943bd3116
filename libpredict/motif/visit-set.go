package motif

// visitSet is a bitset over every possible Gint of size k (2^B(k) bits, 32MB at k=8).
//
// The bitset is allocated once and reset by clearing only the words touched since the
// previous reset, since one enumeration touches a tiny fraction of it.
type visitSet struct {
	words   []uint64
	touched []uint32
}

func newVisitSet(numEdgeBits int) visitSet {
	numWords := (uint64(1)<<uint(numEdgeBits) + 63) / 64
	return visitSet{
		words: make([]uint64, numWords),
	}
}

// TryAdd adds gint and returns true if it was not already present.
func (vs *visitSet) TryAdd(gint uint32) bool {
	wi := gint >> 6
	bit := uint64(1) << (gint & 63)
	w := vs.words[wi]
	if w&bit != 0 {
		return false
	}
	if w == 0 {
		vs.touched = append(vs.touched, wi)
	}
	vs.words[wi] = w | bit
	return true
}

func (vs *visitSet) Reset() {
	for _, wi := range vs.touched {
		vs.words[wi] = 0
	}
	vs.touched = vs.touched[:0]
}
