// Package pairstore holds the accumulated association tallies of every observed node pair of G.
//
// A single table keyed by (u, v, signature) would be astronomically large, so instead each
// observed pair owns an independent tree keyed by signature.  Rows of the lower-triangular
// pair matrix are only allocated once a pair in that row is first touched.
package pairstore

import (
	"github.com/2x3systems/gopredict/gopredict"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/pkg/errors"
)

// Layout selects how a pair's tallies are organized.
type Layout int32

const (

	// Flat keeps one tree per pair: signature => tally
	Flat Layout = iota

	// Nested keeps two levels per pair: signature prefix => internal edge (x:y) => tally.
	// This distinguishes the same internal edge seen twice from two different internal edges.
	Nested
)

func (layout Layout) String() string {
	if layout == Nested {
		return "nested"
	}
	return "flat"
}

// LayoutFor returns the layout required by the given weighting.
func LayoutFor(w gopredict.Weighting) Layout {
	if w == gopredict.WeightDistinct {
		return Nested
	}
	return Flat
}

// Handle refers to the tree of one node pair until the next flush of that pair.
type Handle struct {
	tree *redblacktree.Tree
	gen  uint64
	pair gopredict.Pair
}

// Pair returns the normalized node pair this handle refers to.
func (h Handle) Pair() gopredict.Pair {
	return h.pair
}

// Store is the sparse pair store for a graph of n nodes.
//
// A Store is not safe for concurrent use; each process owns exactly one.
type Store struct {
	n        int
	layout   Layout
	rows     [][]*redblacktree.Tree // rows[u][v], u > v, nil until first touched
	gens     [][]uint64             // flush generation of each slot
	nonEmpty int
}

// New returns an empty store for node indices 0..n-1.
func New(n int, layout Layout) *Store {
	return &Store{
		n:      n,
		layout: layout,
		rows:   make([][]*redblacktree.Tree, n),
		gens:   make([][]uint64, n),
	}
}

func (st *Store) NumNodes() int {
	return st.n
}

func (st *Store) Layout() Layout {
	return st.layout
}

// Len returns the number of non-empty pairs.
func (st *Store) Len() int {
	return st.nonEmpty
}

func (st *Store) normalize(u, v int) (int, int, error) {
	if u < v {
		u, v = v, u
	}
	if v < 0 || u >= st.n {
		return 0, 0, errors.Wrapf(gopredict.ErrNodeRange, "pair (%d,%d) with %d nodes", u, v, st.n)
	}
	if u == v {
		return 0, 0, errors.Wrapf(gopredict.ErrNodeRange, "self pair (%d,%d)", u, v)
	}
	return u, v, nil
}

func (st *Store) slot(u, v int) *redblacktree.Tree {
	row := st.rows[u]
	if row == nil {
		return nil
	}
	return row[v]
}

// Lookup returns the handle for pair (u,v), creating its tree if needed.
func (st *Store) Lookup(u, v int) (Handle, error) {
	u, v, err := st.normalize(u, v)
	if err != nil {
		return Handle{}, err
	}

	row := st.rows[u]
	if row == nil {
		row = make([]*redblacktree.Tree, u)
		st.rows[u] = row
		st.gens[u] = make([]uint64, u)
	}
	tree := row[v]
	if tree == nil {
		tree = redblacktree.NewWithStringComparator()
		row[v] = tree
	}

	return Handle{
		tree: tree,
		gen:  st.gens[u][v],
		pair: gopredict.Pair{U: u, V: v},
	}, nil
}

// Accumulate adds w to the tally of sig for the pair of h, inserting sig if not present.
func (st *Store) Accumulate(h Handle, sig string, w float64) error {
	if h.tree == nil {
		return errors.Wrap(gopredict.ErrInvariant, "accumulate on a zero handle")
	}
	if st.gens[h.pair.U][h.pair.V] != h.gen {
		return errors.Wrapf(gopredict.ErrInvariant, "handle for (%d,%d) used after flush", h.pair.U, h.pair.V)
	}

	var prefix, tail string
	if st.layout == Nested {
		var err error
		if prefix, tail, err = gopredict.SplitTail(sig); err != nil {
			return err
		}
	}

	tree := h.tree
	if tree.Empty() {
		st.nonEmpty++
	}

	key := sig
	if st.layout == Nested {
		var inner *redblacktree.Tree
		if node := tree.GetNode(prefix); node != nil {
			inner = node.Value.(*redblacktree.Tree)
		} else {
			inner = redblacktree.NewWithStringComparator()
			tree.Put(prefix, inner)
		}
		tree, key = inner, tail
	}

	if node := tree.GetNode(key); node != nil {
		*node.Value.(*float64) += w
	} else {
		tally := w
		tree.Put(key, &tally)
	}
	return nil
}

// IsEmpty returns true if pair (u,v) holds no tallies.
func (st *Store) IsEmpty(u, v int) bool {
	u, v, err := st.normalize(u, v)
	if err != nil {
		return true
	}
	tree := st.slot(u, v)
	return tree == nil || tree.Empty()
}

// ForEachPair calls fn for each non-empty pair in (u, v) order until fn returns false.
func (st *Store) ForEachPair(fn func(u, v int) bool) {
	for u, row := range st.rows {
		for v, tree := range row {
			if tree != nil && !tree.Empty() {
				if !fn(u, v) {
					return
				}
			}
		}
	}
}

// ForEachSignature calls fn in signature order for each tally of pair (u,v) until fn returns false.
// A Nested store reassembles each prefix and internal edge into its full signature.
func (st *Store) ForEachSignature(u, v int, fn func(sig string, tally float64) bool) {
	u, v, err := st.normalize(u, v)
	if err != nil {
		return
	}
	tree := st.slot(u, v)
	if tree == nil {
		return
	}
	st.forEach(tree, fn)
}

func (st *Store) forEach(tree *redblacktree.Tree, fn func(sig string, tally float64) bool) {
	itr := tree.Iterator()
	for itr.Next() {
		if st.layout == Flat {
			if !fn(itr.Key().(string), *itr.Value().(*float64)) {
				return
			}
			continue
		}

		prefix := itr.Key().(string)
		inner := itr.Value().(*redblacktree.Tree).Iterator()
		for inner.Next() {
			if !fn(prefix+":"+inner.Key().(string), *inner.Value().(*float64)) {
				return
			}
		}
	}
}

// ForEachSummary calls fn for each signature prefix of pair (u,v) with the number of distinct
// internal edges seen with it and their summed tally.  Only a Nested store can summarize.
func (st *Store) ForEachSummary(u, v int, fn func(prefix string, distinct int, total float64) bool) error {
	if st.layout != Nested {
		return errors.Wrap(gopredict.ErrStoreLayout, "summaries require a nested store")
	}
	u, v, err := st.normalize(u, v)
	if err != nil {
		return err
	}
	tree := st.slot(u, v)
	if tree == nil {
		return nil
	}
	itr := tree.Iterator()
	for itr.Next() {
		inner := itr.Value().(*redblacktree.Tree)
		total := 0.0
		for _, val := range inner.Values() {
			total += *val.(*float64)
		}
		if !fn(itr.Key().(string), inner.Size(), total) {
			break
		}
	}
	return nil
}

// FlushAndClear passes every tally of pair (u,v) to fn and then releases the pair's tree.
// Handles previously returned for (u,v) become invalid.
func (st *Store) FlushAndClear(u, v int, fn func(sig string, tally float64)) error {
	u, v, err := st.normalize(u, v)
	if err != nil {
		return err
	}
	tree := st.slot(u, v)
	if tree == nil {
		return nil
	}
	if fn != nil {
		st.forEach(tree, func(sig string, tally float64) bool {
			fn(sig, tally)
			return true
		})
	}
	if !tree.Empty() {
		st.nonEmpty--
	}
	st.rows[u][v] = nil
	st.gens[u][v]++
	return nil
}

// Reset releases every pair, leaving the store empty.
func (st *Store) Reset() {
	for u, row := range st.rows {
		for v, tree := range row {
			if tree != nil {
				row[v] = nil
				st.gens[u][v]++
			}
		}
	}
	st.nonEmpty = 0
}
