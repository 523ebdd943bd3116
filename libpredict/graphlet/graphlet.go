// Package graphlet implements small (k <= 8) graphs stored as an edge bitset.
//
// The bit for the node pair (i,j), i > j, is i*(i-1)/2 + j, so a graphlet of size k
// occupies the low B(k) = k*(k-1)/2 bits of a uint32 and that integer ("Gint") doubles
// as the graphlet's identity.
package graphlet

import (
	"math/bits"

	"github.com/2x3systems/gopredict/gopredict"
)

// Graphlet is a k-node graph encoded as an edge bitset.
type Graphlet struct {
	k    int
	bits uint32
}

// NumEdgeBits returns B(k), the number of possible edges of a k-node graphlet.
func NumEdgeBits(k int) int {
	return k * (k - 1) / 2
}

// BitIndex returns the bit position for the node pair (i,j); the pair order does not matter.
func BitIndex(i, j int) uint {
	if i < j {
		i, j = j, i
	}
	return uint(i*(i-1)/2 + j)
}

// New returns an edgeless graphlet on k nodes.
func New(k int) Graphlet {
	return Graphlet{k: k}
}

// FromInt returns the k-node graphlet encoded by gint.
func FromInt(k int, gint uint32) Graphlet {
	return Graphlet{k: k, bits: gint}
}

func (g Graphlet) K() int {
	return g.k
}

func (g Graphlet) Int() uint32 {
	return g.bits
}

func (g Graphlet) NumEdges() int {
	return bits.OnesCount32(g.bits)
}

// Has returns true if (i,j) is an edge.
func (g Graphlet) Has(i, j int) bool {
	if i == j {
		return false
	}
	return g.bits&(1<<BitIndex(i, j)) != 0
}

func (g *Graphlet) Connect(i, j int) {
	g.bits |= 1 << BitIndex(i, j)
}

func (g *Graphlet) Disconnect(i, j int) {
	g.bits &^= 1 << BitIndex(i, j)
}

// Degree returns the number of neighbors of node i.
func (g Graphlet) Degree(i int) int {
	deg := 0
	for j := 0; j < g.k; j++ {
		if g.Has(i, j) {
			deg++
		}
	}
	return deg
}

// IsConnected returns true if every node is reachable from node 0.
func (g Graphlet) IsConnected() bool {
	if g.k == 0 {
		return true
	}
	all := uint32(1)<<uint(g.k) - 1
	seen := uint32(1)
	frontier := uint32(1)
	for frontier != 0 {
		i := bits.TrailingZeros32(frontier)
		frontier &^= 1 << uint(i)
		for j := 0; j < g.k; j++ {
			if seen&(1<<uint(j)) == 0 && g.Has(i, j) {
				seen |= 1 << uint(j)
				frontier |= 1 << uint(j)
			}
		}
	}
	return seen == all
}

// Permute returns the graphlet h where h.Has(c1,c2) == g.Has(perm[c1], perm[c2]).
func (g Graphlet) Permute(perm *gopredict.Perm) Graphlet {
	h := Graphlet{k: g.k}
	for c1 := 1; c1 < g.k; c1++ {
		for c2 := 0; c2 < c1; c2++ {
			if g.Has(int(perm[c1]), int(perm[c2])) {
				h.Connect(c1, c2)
			}
		}
	}
	return h
}

// ForEachEdge calls fn for every edge (i,j), i > j, in bit order.
func (g Graphlet) ForEachEdge(fn func(i, j int)) {
	for i := 1; i < g.k; i++ {
		for j := 0; j < i; j++ {
			if g.Has(i, j) {
				fn(i, j)
			}
		}
	}
}
