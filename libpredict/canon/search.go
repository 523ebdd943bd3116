package canon

import (
	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
)

// canonSearch finds the relabeling of a graphlet with the largest Gint without trying all k! of them.
//
// The most significant bits of a Gint are the row of canonical position k-1, then k-2, and so on,
// so nodes are placed from position k-1 downward.  Unplaced nodes are kept in an ordered partition
// whose cells group nodes with the same adjacency to every placed node.  A cell's nodes can be
// swapped without changing any placed row, so the best row for the next node puts its neighbors
// first within each cell.  Only the first cell's nodes are tried for the next position, only those
// whose row is best go deeper, and of two twins (same neighbors apart from each other) only one.
//
// Below, "slot" s is canonical position k-1-s.
type canonSearch struct {
	k   int
	adj [gopredict.MaxK]uint8 // neighbor bitmask of each node

	found     bool
	best      uint32
	bestSlots [gopredict.MaxK]uint8
}

func newCanonSearch(g graphlet.Graphlet) *canonSearch {
	s := &canonSearch{
		k: g.K(),
	}
	g.ForEachEdge(func(i, j int) {
		s.adj[i] |= 1 << uint(j)
		s.adj[j] |= 1 << uint(i)
	})
	return s
}

// run searches every relabeling, or if first >= 0, only those placing node first at position k-1.
func (s *canonSearch) run(first int) {
	var slots [gopredict.MaxK]uint8
	var cuts uint16 // bit s set: a cell starts at slot s
	n := 0
	if first >= 0 {
		slots[0] = uint8(first)
		cuts = 1 << 1
		n = 1
	}
	for i := 0; i < s.k; i++ {
		if i != first {
			slots[n] = uint8(i)
			n++
		}
	}
	s.found = false
	s.descend(0, slots, cuts, 0)
}

// perm returns the best relabeling found, indexed by canonical position.
func (s *canonSearch) perm() (perm gopredict.Perm) {
	for slot := 0; slot < s.k; slot++ {
		perm[s.k-1-slot] = s.bestSlots[slot]
	}
	return perm
}

type candidate struct {
	slots [gopredict.MaxK]uint8
	cuts  uint16
	row   uint32
}

func (s *canonSearch) descend(t int, slots [gopredict.MaxK]uint8, cuts uint16, prefix uint32) {
	k := s.k
	if t >= k-1 {
		if !s.found || prefix > s.best {
			s.found = true
			s.best = prefix
			s.bestSlots = slots
		}
		return
	}

	end := t + 1
	for end < k && cuts&(1<<uint(end)) == 0 {
		end++
	}

	row := k - 1 - t
	rowBase := uint(graphlet.NumEdgeBits(row))
	placed := ^uint32(0) << rowBase

	var (
		cands   [gopredict.MaxK]candidate
		nCands  int
		bestRow uint32
		tried   uint8
	)
	for c := t; c < end; c++ {
		x := slots[c]
		if s.hasTwin(x, tried) {
			continue
		}
		tried |= 1 << x

		cd := &cands[nCands]
		nCands++
		cd.slots = slots
		cd.slots[c], cd.slots[t] = cd.slots[t], cd.slots[c]
		cd.cuts = cuts | 1<<uint(t+1)
		cd.row = 0

		nbrs := s.adj[x]
		for lo := t + 1; lo < k; {
			hi := lo + 1
			for hi < k && cd.cuts&(1<<uint(hi)) == 0 {
				hi++
			}
			mid := lo
			for b := lo; b < hi; b++ {
				if nbrs&(1<<cd.slots[b]) != 0 {
					cd.slots[mid], cd.slots[b] = cd.slots[b], cd.slots[mid]
					cd.row |= 1 << (rowBase + uint(k-1-mid))
					mid++
				}
			}
			if mid > lo && mid < hi {
				cd.cuts |= 1 << uint(mid)
			}
			lo = hi
		}
		if cd.row > bestRow {
			bestRow = cd.row
		}
	}

	for i := 0; i < nCands; i++ {
		cd := &cands[i]
		if cd.row != bestRow {
			continue
		}
		next := prefix | cd.row
		if s.found && next&placed < s.best&placed {
			continue
		}
		s.descend(t+1, cd.slots, cd.cuts, next)
	}
}

// hasTwin returns true if some node in tried has the same neighbors as x, ignoring each other.
func (s *canonSearch) hasTwin(x uint8, tried uint8) bool {
	for y := uint8(0); tried != 0; y++ {
		if tried&(1<<y) == 0 {
			continue
		}
		tried &^= 1 << y
		if s.adj[x]&^(1<<y) == s.adj[y]&^(1<<x) {
			return true
		}
	}
	return false
}

// searchCanonical returns the largest Gint among the relabelings of g and a perm producing it.
func searchCanonical(g graphlet.Graphlet) (uint32, gopredict.Perm) {
	s := newCanonSearch(g)
	s.run(-1)
	return s.best, s.perm()
}

// searchOrbits returns, for each position c of g, the smallest position automorphic to c.
//
// Two positions are automorphic exactly when the best relabelings that place each of them first
// have the same Gint.
func searchOrbits(g graphlet.Graphlet) (reps gopredict.Perm) {
	s := newCanonSearch(g)
	var keys [gopredict.MaxK]uint32
	for c := 0; c < s.k; c++ {
		s.run(c)
		keys[c] = s.best
		reps[c] = uint8(c)
		for d := 0; d < c; d++ {
			if keys[d] == keys[c] {
				reps[c] = uint8(d)
				break
			}
		}
	}
	return reps
}
