// Package graph loads the large input graph G from an edge list.
package graph

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
)

// LoadOpts specifies how an edge list is read.
type LoadOpts struct {
	Names bool // node tokens are names rather than integer indices
}

// Graph is an undirected simple graph whose nodes are 0..n-1.
type Graph struct {
	g      *simple.UndirectedGraph
	degree []int
	names  []string       // nil unless loaded with Names
	index  map[string]int // name => node index
}

var _ gopredict.Graph = (*Graph)(nil)

// New returns an edgeless graph of n nodes.
func New(n int) *Graph {
	gr := &Graph{
		g: simple.NewUndirectedGraph(),
	}
	gr.grow(n)
	return gr
}

func (gr *Graph) grow(n int) {
	for u := len(gr.degree); u < n; u++ {
		gr.g.AddNode(simple.Node(u))
		gr.degree = append(gr.degree, 0)
	}
}

func (gr *Graph) NumNodes() int {
	return len(gr.degree)
}

func (gr *Graph) NumEdges() int {
	return gr.g.Edges().Len()
}

// AddEdge adds (u,v), growing the graph as needed.  Self loops and repeated edges are ignored.
func (gr *Graph) AddEdge(u, v int) error {
	if u < 0 || v < 0 {
		return errors.Wrapf(gopredict.ErrNodeRange, "edge (%d,%d)", u, v)
	}
	if u == v {
		return nil
	}
	if u >= len(gr.degree) || v >= len(gr.degree) {
		gr.grow(max(u, v) + 1)
	}
	if gr.g.HasEdgeBetween(int64(u), int64(v)) {
		return nil
	}
	gr.g.SetEdge(gr.g.NewEdge(simple.Node(u), simple.Node(v)))
	gr.degree[u]++
	gr.degree[v]++
	return nil
}

func (gr *Graph) Degree(u int) int {
	if u < 0 || u >= len(gr.degree) {
		return 0
	}
	return gr.degree[u]
}

func (gr *Graph) HasEdge(u, v int) bool {
	if u == v {
		return false
	}
	return gr.g.HasEdgeBetween(int64(u), int64(v))
}

// NodeName returns the name of u, or u in decimal if the graph has no names.
func (gr *Graph) NodeName(u int) string {
	if gr.names != nil && u >= 0 && u < len(gr.names) {
		return gr.names[u]
	}
	return strconv.Itoa(u)
}

// NodeIndex resolves a node name, or a decimal index if the graph has no names.
func (gr *Graph) NodeIndex(name string) (int, bool) {
	if gr.names != nil {
		u, found := gr.index[name]
		return u, found
	}
	u, err := strconv.Atoi(name)
	if err != nil || u < 0 || u >= len(gr.degree) {
		return 0, false
	}
	return u, true
}

// HasNames returns true if this graph resolves nodes by name.
func (gr *Graph) HasNames() bool {
	return gr.names != nil
}

func (gr *Graph) nameToIndex(name string) int {
	u, found := gr.index[name]
	if !found {
		u = len(gr.names)
		gr.names = append(gr.names, name)
		gr.index[name] = u
		gr.grow(u + 1)
	}
	return u
}

// LoadFile reads an edge list file; see Load.
func LoadFile(pathname string, opts LoadOpts) (*Graph, error) {
	file, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := Load(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", pathname)
	}
	return gr, nil
}

// Load reads an edge list: one "u v" per line, blank lines and lines starting with '#' skipped.
// With opts.Names, node indices are assigned to names in order of first appearance.
func Load(r io.Reader, opts LoadOpts) (*Graph, error) {
	gr := New(0)
	if opts.Names {
		gr.names = []string{}
		gr.index = make(map[string]int)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Wrapf(gopredict.ErrBadLine, "edge list line %d: %q", lineNum, line)
		}

		var u, v int
		if opts.Names {
			u = gr.nameToIndex(fields[0])
			v = gr.nameToIndex(fields[1])
		} else {
			var err error
			if u, err = strconv.Atoi(fields[0]); err == nil {
				v, err = strconv.Atoi(fields[1])
			}
			if err != nil {
				return nil, errors.Wrapf(gopredict.ErrBadLine, "edge list line %d: %q", lineNum, line)
			}
		}
		if err := gr.AddEdge(u, v); err != nil {
			return nil, errors.Wrapf(err, "edge list line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return gr, nil
}
