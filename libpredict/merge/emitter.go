package merge

import (
	"bufio"
	"io"
	"strconv"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/pairstore"
)

// Emitter writes pair store contents as merge lines.
type Emitter struct {
	w     *bufio.Writer
	graph gopredict.Graph
	names bool
	line  []byte

	NumLines   int64
	NumEntries int64
}

// NewEmitter returns an Emitter writing to w.  graph supplies the edge flag of each pair and,
// if names is set, the node names written in place of indices.
func NewEmitter(w io.Writer, graph gopredict.Graph, names bool) *Emitter {
	return &Emitter{
		w:     bufio.NewWriterSize(w, 64*1024),
		graph: graph,
		names: names,
		line:  make([]byte, 0, 4096),
	}
}

func (em *Emitter) beginLine(u, v int) {
	em.line = em.line[:0]
	if em.names {
		em.line = append(em.line, em.graph.NodeName(u)...)
		em.line = append(em.line, ':')
		em.line = append(em.line, em.graph.NodeName(v)...)
	} else {
		em.line = strconv.AppendInt(em.line, int64(u), 10)
		em.line = append(em.line, ':')
		em.line = strconv.AppendInt(em.line, int64(v), 10)
	}
	if em.graph.HasEdge(u, v) {
		em.line = append(em.line, " 1"...)
	} else {
		em.line = append(em.line, " 0"...)
	}
}

func (em *Emitter) appendEntry(sig string, tally float64) {
	em.line = append(em.line, '\t')
	em.line = append(em.line, sig...)
	em.line = append(em.line, ' ')
	em.line = AppendTally(em.line, tally)
	em.NumEntries++
}

func (em *Emitter) endLine() error {
	em.line = append(em.line, '\n')
	em.NumLines++
	_, err := em.w.Write(em.line)
	return err
}

// AppendTally appends tally in decimal without an exponent; whole tallies have no decimal point.
func AppendTally(dst []byte, tally float64) []byte {
	return strconv.AppendFloat(dst, tally, 'f', -1, 64)
}

// Flush writes one line per non-empty pair of store, clearing each pair once written.
// Afterwards the store is empty.
func (em *Emitter) Flush(store *pairstore.Store) (numPairs int, err error) {
	store.ForEachPair(func(u, v int) bool {
		em.beginLine(u, v)
		err = store.FlushAndClear(u, v, em.appendEntry)
		if err == nil {
			err = em.endLine()
		}
		if err != nil {
			return false
		}
		numPairs++
		return true
	})
	if err == nil {
		err = em.w.Flush()
	}
	return numPairs, err
}

// Report writes one line per non-empty pair of store, leaving the store intact.
// With summarize (nested stores only), each signature prefix is written with its number of
// distinct internal edges in place of its full signatures.
func (em *Emitter) Report(store *pairstore.Store, summarize bool) (numPairs int, err error) {
	store.ForEachPair(func(u, v int) bool {
		em.beginLine(u, v)
		if summarize {
			err = store.ForEachSummary(u, v, func(prefix string, distinct int, _ float64) bool {
				em.appendEntry(prefix, float64(distinct))
				return true
			})
		} else {
			store.ForEachSignature(u, v, func(sig string, tally float64) bool {
				em.appendEntry(sig, tally)
				return true
			})
		}
		if err == nil {
			err = em.endLine()
		}
		if err != nil {
			return false
		}
		numPairs++
		return true
	})
	if err == nil {
		err = em.w.Flush()
	}
	return numPairs, err
}
