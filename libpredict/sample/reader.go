// Package sample reads graphlet samples (k-tuples of nodes of G) and resolves their canonical form.
package sample

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
	"github.com/pkg/errors"
)

// Reader turns sample lines into Samples.
type Reader struct {
	graph gopredict.Graph
	canon gopredict.Canonicalizer
	names bool
}

// NewReader returns a Reader resolving nodes through graph, by name if names is set.
func NewReader(graph gopredict.Graph, canon gopredict.Canonicalizer, names bool) *Reader {
	return &Reader{
		graph: graph,
		canon: canon,
		names: names,
	}
}

// IsSampleLine returns false for blank and comment lines.
func IsSampleLine(line string) bool {
	line = strings.TrimSpace(line)
	return len(line) > 0 && line[0] != '#'
}

// ParseLine parses one line of k whitespace-separated nodes.
// Blank and comment lines return a nil Sample and no error.
func (rd *Reader) ParseLine(line string) (*gopredict.Sample, error) {
	if !IsSampleLine(line) {
		return nil, nil
	}

	k := rd.canon.K()
	fields := strings.Fields(line)
	if len(fields) != k {
		return nil, errors.Wrapf(gopredict.ErrBadSample, "%d nodes given, k=%d", len(fields), k)
	}

	s := &gopredict.Sample{
		Varray: make([]int, k),
	}
	for i, tok := range fields {
		u, err := rd.resolve(tok)
		if err != nil {
			return nil, err
		}
		for j := 0; j < i; j++ {
			if s.Varray[j] == u {
				return nil, errors.Wrapf(gopredict.ErrBadSample, "node %q repeats", tok)
			}
		}
		s.Varray[i] = u
	}

	g := graphlet.New(k)
	for i := 1; i < k; i++ {
		for j := 0; j < i; j++ {
			if rd.graph.HasEdge(s.Varray[i], s.Varray[j]) {
				g.Connect(i, j)
			}
		}
	}
	if !g.IsConnected() {
		return nil, errors.Wrapf(gopredict.ErrBadSample, "nodes %v do not induce a connected graphlet", fields)
	}

	var err error
	s.Gint = g.Int()
	if s.Ordinal, s.Perm, err = rd.canon.Canonize(s.Gint); err != nil {
		return nil, err
	}
	return s, nil
}

func (rd *Reader) resolve(tok string) (int, error) {
	if rd.names {
		u, found := rd.graph.NodeIndex(tok)
		if !found {
			return 0, errors.Wrapf(gopredict.ErrUnknownNode, "%q", tok)
		}
		return u, nil
	}
	u, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.Wrapf(gopredict.ErrBadSample, "node %q is not an index", tok)
	}
	if u < 0 || u >= rd.graph.NumNodes() {
		return 0, errors.Wrapf(gopredict.ErrNodeRange, "node %d of %d", u, rd.graph.NumNodes())
	}
	return u, nil
}

// Stream parses samples from r on a new goroutine until EOF, a bad line, or ctx is done.
// The returned stream's Err is set once its Outlet closes.
func (rd *Reader) Stream(ctx context.Context, r io.Reader) *gopredict.SampleStream {
	stream := gopredict.NewSampleStream()

	go func() {
		var err error
		defer func() {
			stream.CloseWithError(err)
		}()

		scanner := bufio.NewScanner(r)
		for lineNum := 1; scanner.Scan(); lineNum++ {
			var s *gopredict.Sample
			s, err = rd.ParseLine(scanner.Text())
			if err != nil {
				err = errors.Wrapf(err, "sample line %d", lineNum)
				return
			}
			if s == nil {
				continue
			}
			select {
			case stream.Outlet <- s:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}
		err = scanner.Err()
	}()

	return stream
}
