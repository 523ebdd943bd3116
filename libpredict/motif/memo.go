// Package motif memoizes, per canonical graphlet, which sub-motif node pair associations
// each canonical node pair participates in.
//
// Rather than enumerating the sub-motifs of every graphlet sampled from G, the sub-motifs of
// each canonical graphlet are enumerated once (by recursive edge deletion), and the resulting
// associations are stored per pair of canonical nodes.  A sampled graphlet then only needs its
// perm to transfer those associations onto its own nodes.
package motif

import (
	"fmt"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/pkg/errors"
)

// Entry is the memoized tally of one association signature.
//
// Prefix and the tail nodes are pre-split so that transferring a signature never re-parses it.
type Entry struct {
	Count  int64
	Prefix string // the signature less its ":x:y" tail (the whole signature if there is no tail)
	X, Y   int8   // top canonical node positions of the internal edge, or -1 if there is no tail
}

// HasTail returns true if this entry's signature ends in an internal edge.
func (e *Entry) HasTail() bool {
	return e.X >= 0
}

// canonMemo holds one tree per canonical node pair (u,v), u > v, keyed by signature.
type canonMemo struct {
	trees [gopredict.MaxK][gopredict.MaxK]*redblacktree.Tree
}

// Memo is the per-run association memo, lazily filled as canonical ordinals are first seen.
//
// A Memo is not safe for concurrent use.
type Memo struct {
	opts  gopredict.PredictOpts
	canon gopredict.Canonicalizer
	byOrd map[gopredict.Ordinal]*canonMemo
	seen  visitSet
	buf   []byte
	nSigs int
}

func NewMemo(canon gopredict.Canonicalizer, opts gopredict.PredictOpts) (*Memo, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if canon.K() != opts.K {
		return nil, errors.Wrapf(gopredict.ErrConfig, "canonicalizer k=%d but predict k=%d", canon.K(), opts.K)
	}
	return &Memo{
		opts:  opts,
		canon: canon,
		byOrd: make(map[gopredict.Ordinal]*canonMemo),
		buf:   make([]byte, 0, 64),
	}, nil
}

// NumOrdinals returns how many canonical graphlets have been memoized.
func (m *Memo) NumOrdinals() int {
	return len(m.byOrd)
}

// NumSignatures returns the total number of distinct (ordinal, pair, signature) entries.
func (m *Memo) NumSignatures() int {
	return m.nSigs
}

// Has returns true if ord has already been memoized.
func (m *Memo) Has(ord gopredict.Ordinal) bool {
	_, exists := m.byOrd[ord]
	return exists
}

// Size returns the number of signatures memoized for canonical pair (u,v) of ord.
func (m *Memo) Size(ord gopredict.Ordinal, u, v int) int {
	tree := m.tree(ord, u, v)
	if tree == nil {
		return 0
	}
	return tree.Size()
}

// ForEach calls fn in signature order for each entry memoized for canonical pair (u,v) of ord.
// Enumeration stops early if fn returns false.
func (m *Memo) ForEach(ord gopredict.Ordinal, u, v int, fn func(sig string, e *Entry) bool) {
	tree := m.tree(ord, u, v)
	if tree == nil {
		return
	}
	itr := tree.Iterator()
	for itr.Next() {
		if !fn(itr.Key().(string), itr.Value().(*Entry)) {
			return
		}
	}
}

// tree returns the tree of canonical pair (u,v) of ord, or nil if there is none.
func (m *Memo) tree(ord gopredict.Ordinal, u, v int) *redblacktree.Tree {
	cm := m.byOrd[ord]
	if cm == nil || u == v || u < 0 || v < 0 || u >= m.opts.K || v >= m.opts.K {
		return nil
	}
	if u < v {
		u, v = v, u
	}
	return cm.trees[u][v]
}

// Ensure memoizes ord if it has not been already.  Calling Ensure again for the same ord is a no-op.
func (m *Memo) Ensure(ord gopredict.Ordinal) error {
	if m.Has(ord) {
		return nil
	}

	k := m.opts.K
	top := graphlet.FromInt(k, m.canon.Canonical(ord))
	topOrd, _, err := m.canon.Canonize(top.Int())
	if err != nil {
		return err
	}
	if topOrd != ord {
		return errors.Wrapf(gopredict.ErrNotCanonical, "ordinal %d maps to Gint %d whose ordinal is %d", ord, top.Int(), topOrd)
	}

	cm := &canonMemo{}
	for u := 1; u < k; u++ {
		for v := 0; v < u; v++ {
			cm.trees[u][v] = redblacktree.NewWithStringComparator()
		}
	}

	if m.seen.words == nil {
		m.seen = newVisitSet(graphlet.NumEdgeBits(k))
	}
	m.seen.Reset()

	if err = m.accumulateSubmotifs(cm, &top); err != nil {
		return err
	}

	// Only a completed memo is published, so a failed enumeration is retried from scratch.
	m.byOrd[ord] = cm
	return nil
}

// accumulateSubmotifs registers g and then recurses into every connected graphlet reachable
// from g by deleting one edge.  g is restored to its original edges before returning.
func (m *Memo) accumulateSubmotifs(cm *canonMemo, g *graphlet.Graphlet) error {
	if !m.seen.TryAdd(g.Int()) {
		return nil
	}
	if err := m.incrementPairCounts(cm, g); err != nil {
		return err
	}

	k := g.K()
	for i := 1; i < k; i++ {
		for j := 0; j < i; j++ {
			if !g.Has(i, j) {
				continue
			}
			g.Disconnect(i, j)
			var err error
			if g.IsConnected() {
				err = m.accumulateSubmotifs(cm, g)
			}
			g.Connect(i, j)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// incrementPairCounts registers, for every canonical pair of sub-motif h that is disconnected in h,
// one association per the signature mode into the tree of the top canonical nodes holding that pair.
func (m *Memo) incrementPairCounts(cm *canonMemo, h *graphlet.Graphlet) error {
	k := m.opts.K
	hOrd, hPerm, err := m.canon.Canonize(h.Int())
	if err != nil {
		return err
	}

	for o := 1; o < k; o++ {
		for p := 0; p < o; p++ {
			u, v := int(hPerm[o]), int(hPerm[p]) // u and v in the top canonical graphlet
			if u < v {
				u, v = v, u
			}

			// An existing edge has nothing to predict.
			if h.Has(u, v) {
				continue
			}

			ident, err := m.appendIdentity(m.buf[:0], hOrd, o, p)
			if err != nil {
				return err
			}
			m.buf = ident
			if m.opts.Filter != nil && !m.opts.Filter.Contains(string(ident)) {
				continue
			}

			tree := cm.trees[u][v]
			switch m.opts.Signature {
			case gopredict.SigPairOnly:
				m.bump(tree, ident, len(ident), -1, -1)

			case gopredict.SigEdge:
				h.ForEachEdge(func(x, y int) {
					m.bump(tree, ident, len(ident), x, y)
				})

			case gopredict.SigQuad:
				identLen := len(ident)
				for q := 1; q < k; q++ {
					for r := 0; r < q; r++ {
						if q == o && r == p {
							continue
						}
						x, y := int(hPerm[q]), int(hPerm[r])
						if !h.Has(x, y) {
							continue
						}
						prefix := gopredict.AppendEdge(ident[:identLen], q, r)
						m.bump(tree, prefix, len(prefix), x, y)
						ident = prefix[:identLen]
					}
				}
			}
			m.buf = ident[:0]
		}
	}
	return nil
}

func (m *Memo) appendIdentity(dst []byte, hOrd gopredict.Ordinal, o, p int) ([]byte, error) {
	k := m.opts.K
	if m.opts.Identity == gopredict.IdentityOrbit {
		orbitA, err := m.canon.OrbitID(hOrd, o)
		if err != nil {
			return dst, err
		}
		orbitB, err := m.canon.OrbitID(hOrd, p)
		if err != nil {
			return dst, err
		}
		return gopredict.AppendOrbitIdentity(dst, k, orbitA, orbitB), nil
	}
	return gopredict.AppendCanonicalIdentity(dst, k, hOrd, o, p), nil
}

// bump increments the count of signature prefix[:prefixLen]+":x:y" (or just the prefix if x < 0).
func (m *Memo) bump(tree *redblacktree.Tree, prefix []byte, prefixLen int, x, y int) {
	sig := prefix[:prefixLen]
	if x >= 0 {
		if x < y {
			x, y = y, x
		}
		sig = gopredict.AppendEdge(sig, x, y)
	}

	key := string(sig)
	if node := tree.GetNode(key); node != nil {
		node.Value.(*Entry).Count++
		return
	}

	tree.Put(key, &Entry{
		Count:  1,
		Prefix: key[:prefixLen],
		X:      int8(x),
		Y:      int8(y),
	})
	m.nSigs++
}

// String returns a readable dump of one memoized ordinal.
func (m *Memo) String(ord gopredict.Ordinal) string {
	cm := m.byOrd[ord]
	if cm == nil {
		return fmt.Sprintf("ordinal %d: not memoized", ord)
	}
	str := fmt.Sprintf("ordinal %d:", ord)
	for u := 1; u < m.opts.K; u++ {
		for v := 0; v < u; v++ {
			str += fmt.Sprintf("\n  [%d][%d] %d signatures", u, v, cm.trees[u][v].Size())
		}
	}
	return str
}
