package sample

import (
	"context"
	"strings"
	"testing"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/canon"
	"github.com/2x3systems/gopredict/libpredict/graph"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareWithTail = "0 1\n1 2\n2 3\n3 0\n3 4\n"

func newReader(t *testing.T, edges string, names bool) *Reader {
	g, err := graph.Load(strings.NewReader(edges), graph.LoadOpts{Names: names})
	require.NoError(t, err)
	cat, err := canon.OpenCatalog(canon.CatalogOpts{K: 4})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return NewReader(g, cat, names)
}

func TestParseLine(t *testing.T) {
	rd := newReader(t, squareWithTail, false)

	s, err := rd.ParseLine("2 0 3 1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 3, 1}, s.Varray)

	// the sample's graphlet mirrors G
	g := graphlet.FromInt(4, s.Gint)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, rd.graph.HasEdge(s.Varray[i], s.Varray[j]), g.Has(i, j))
		}
	}

	// and its perm relates it to the canonical form
	canonical := graphlet.FromInt(4, rd.canon.Canonical(s.Ordinal))
	for c1 := 0; c1 < 4; c1++ {
		for c2 := 0; c2 < 4; c2++ {
			assert.Equal(t, canonical.Has(c1, c2), g.Has(int(s.Perm[c1]), int(s.Perm[c2])))
		}
	}

	s, err = rd.ParseLine("  # comment")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestParseLineRejects(t *testing.T) {
	rd := newReader(t, squareWithTail, false)

	for _, tc := range []struct {
		line string
		err  error
	}{
		{"0 1 2", gopredict.ErrBadSample},
		{"0 1 2 3 4", gopredict.ErrBadSample},
		{"0 1 2 2", gopredict.ErrBadSample},
		{"0 1 2 x", gopredict.ErrBadSample},
		{"0 1 2 5", gopredict.ErrNodeRange},
		{"0 1 4 2", gopredict.ErrBadSample}, // 4 only touches 3
	} {
		_, err := rd.ParseLine(tc.line)
		assert.ErrorIs(t, err, tc.err, tc.line)
	}
}

func TestNames(t *testing.T) {
	rd := newReader(t, "a b\nb c\nc d\nd a\n", true)
	s, err := rd.ParseLine("a b c d")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, s.Varray)
	assert.Equal(t, 4, graphlet.FromInt(4, s.Gint).NumEdges())

	_, err = rd.ParseLine("a b c e")
	assert.ErrorIs(t, err, gopredict.ErrUnknownNode)
}

func TestStream(t *testing.T) {
	rd := newReader(t, squareWithTail, false)

	stream := rd.Stream(context.Background(), strings.NewReader("# header\n0 1 2 3\n\n1 2 3 4\n"))
	var got [][]int
	for s := range stream.Outlet {
		got = append(got, s.Varray)
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {1, 2, 3, 4}}, got)

	stream = rd.Stream(context.Background(), strings.NewReader("0 1 2 3\n0 1 2\n0 1 2 3\n"))
	assert.Equal(t, 1, stream.PullAll())
	assert.ErrorIs(t, stream.Err(), gopredict.ErrBadSample)
	assert.Contains(t, stream.Err().Error(), "sample line 2")
}
