// Package transfer projects memoized canonical associations onto sampled graphlets of G.
package transfer

import (
	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/motif"
	"github.com/2x3systems/gopredict/libpredict/pairstore"
	"github.com/pkg/errors"
)

// Accumulator transfers each sample's memoized associations into a pair store.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	memo  *motif.Memo
	store *pairstore.Store
	graph gopredict.Graph
	opts  gopredict.PredictOpts
	buf   []byte

	NumSamples int64
}

func NewAccumulator(memo *motif.Memo, store *pairstore.Store, graph gopredict.Graph, opts gopredict.PredictOpts) *Accumulator {
	return &Accumulator{
		memo:  memo,
		store: store,
		graph: graph,
		opts:  opts,
		buf:   make([]byte, 0, 64),
	}
}

func (acc *Accumulator) Store() *pairstore.Store {
	return acc.store
}

// Accumulate projects the associations of every canonical pair of s onto its nodes in G.
//
// Edges and non-edges of the sample are both transferred: a pair that is an edge in the sample
// still inherits the associations of the sub-motifs in which it was missing.
func (acc *Accumulator) Accumulate(s *gopredict.Sample) error {
	k := acc.opts.K
	if len(s.Varray) != k {
		return errors.Wrapf(gopredict.ErrBadSample, "sample has %d nodes, expected %d", len(s.Varray), k)
	}
	if err := acc.memo.Ensure(s.Ordinal); err != nil {
		return err
	}

	sumInvDeg := 0.0
	if acc.opts.Weighting == gopredict.WeightDegree {
		for _, u := range s.Varray {
			sumInvDeg += invDegree(acc.graph, u)
		}
	}

	var err error
	for i := 1; i < k; i++ {
		for j := 0; j < i; j++ {
			if acc.memo.Size(s.Ordinal, i, j) == 0 {
				continue
			}
			Gu := s.Varray[s.Perm[i]]
			Gv := s.Varray[s.Perm[j]]

			var h pairstore.Handle
			if h, err = acc.store.Lookup(Gu, Gv); err != nil {
				return err
			}

			weight := 1.0
			if acc.opts.Weighting == gopredict.WeightDegree {
				weight = sumInvDeg - invDegree(acc.graph, Gu) - invDegree(acc.graph, Gv)
			}

			acc.memo.ForEach(s.Ordinal, i, j, func(sig string, e *motif.Entry) bool {
				if e.HasTail() {
					Gx := s.Varray[s.Perm[e.X]]
					Gy := s.Varray[s.Perm[e.Y]]
					acc.buf = append(acc.buf[:0], e.Prefix...)
					acc.buf = gopredict.AppendEdge(acc.buf, Gx, Gy)
					sig = string(acc.buf)
				}
				err = acc.store.Accumulate(h, sig, float64(e.Count)*weight)
				return err == nil
			})
			if err != nil {
				return err
			}
		}
	}

	acc.NumSamples++
	return nil
}

func invDegree(g gopredict.Graph, u int) float64 {
	deg := g.Degree(u)
	if deg == 0 {
		return 0
	}
	return 1 / float64(deg)
}
