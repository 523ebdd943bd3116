package merge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/graph"
	"github.com/2x3systems/gopredict/libpredict/pairstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tallyKey struct {
	U, V int
	Sig  string
}

func dump(st *pairstore.Store) map[tallyKey]float64 {
	out := map[tallyKey]float64{}
	st.ForEachPair(func(u, v int) bool {
		st.ForEachSignature(u, v, func(sig string, tally float64) bool {
			out[tallyKey{u, v, sig}] = tally
			return true
		})
		return true
	})
	return out
}

func fill(t *testing.T, st *pairstore.Store, entries map[tallyKey]float64) {
	for key, tally := range entries {
		h, err := st.Lookup(key.U, key.V)
		require.NoError(t, err)
		require.NoError(t, st.Accumulate(h, key.Sig, tally))
	}
}

func testGraph(t *testing.T) *graph.Graph {
	g, err := graph.Load(strings.NewReader("0 1\n1 2\n2 3\n3 0\n3 4\n4 5\n"), graph.LoadOpts{})
	require.NoError(t, err)
	return g
}

func TestParseLine(t *testing.T) {
	p := NewParser(nil, 10)

	rec, err := p.ParseLine("9:7 1\t4:51:2:0:7:3 2\t4:50:3:1:9:1 0.8333333333333334\t3:6:1:0 1.5e-05\n")
	require.NoError(t, err)
	assert.Equal(t, 9, rec.U)
	assert.Equal(t, 7, rec.V)
	assert.True(t, rec.Edge)
	assert.Equal(t, []Entry{
		{"4:51:2:0:7:3", 2},
		{"4:50:3:1:9:1", 0.8333333333333334},
		{"3:6:1:0", 1.5e-05},
	}, rec.Entries)

	// pairs are normalized
	rec, err = p.ParseLine("2:5 0\t3:6:1:0 1\n")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.U)
	assert.Equal(t, 2, rec.V)
	assert.False(t, rec.Edge)
}

func TestParseLineRejects(t *testing.T) {
	p := NewParser(nil, 10)

	for _, tc := range []struct {
		line string
		err  error
	}{
		{"9:7 1\t4:51:2:0:7:3 2", gopredict.ErrTruncatedLine},
		{"", gopredict.ErrTruncatedLine},
		{"\n", gopredict.ErrBadLine},
		{"9:7 1\n", gopredict.ErrBadLine},
		{"9:7 2\t3:6:1:0 1\n", gopredict.ErrBadLine},
		{"9-7 1\t3:6:1:0 1\n", gopredict.ErrBadLine},
		{"9:7 1 \t3:6:1:0 1\n", gopredict.ErrBadLine},
		{"9:7 1\t3:6:1:0\n", gopredict.ErrBadLine},
		{"9:7 1\t3:6:1:0 x\n", gopredict.ErrBadLine},
		{"9:7 1\t3:6::0 1\n", gopredict.ErrBadLine},
		{"9:7 1\t3 1\n", gopredict.ErrBadLine},
		{"9:7 1\t9:6:1:0 1\n", gopredict.ErrBadK},
		{"9:7 1\t3:6 1\n", gopredict.ErrBadSignature},
		{"bob:7 1\t3:6:1:0 1\n", gopredict.ErrBadLine},
		{"-2:7 1\t3:6:1:0 1\n", gopredict.ErrNodeRange},
		{"9:7 1\t4:51:9:0:7:3 2\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:51:2:7:7:3 2\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:51:1:2:7:3 2\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:64:2:0 1\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:51:2:0:3:7 1\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:51:2:0:2:0:7:3 1\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:256:5 1\n", gopredict.ErrBadSignature},
		{"9:7 1\t4:51:2:0:12:3 1\n", gopredict.ErrNodeRange},
		{"9:7 1\t3:6:1:0 1\t4:51:2:0:7:3:1:0:5 1\n", gopredict.ErrBadSignature},
	} {
		_, err := p.ParseLine(tc.line)
		assert.ErrorIs(t, err, tc.err, "%q", tc.line)
	}
}

func TestRoundTrip(t *testing.T) {
	g := testGraph(t)
	original := map[tallyKey]float64{
		{1, 0, "4:51:2:0:1:0"}:       3,
		{1, 0, "4:51:3:1:3:0"}:       0.1 + 0.2,
		{5, 3, "4:50:3:0:5:4"}:       1.0 / 3,
		{5, 3, "5:1023:4:1:4:3:5:4"}: 12,
		{4, 0, "3:6:1:0"}:            1e-7,
		{2, 0, "4:51:2:0:3:2"}:       7.25,
	}

	st := pairstore.New(g.NumNodes(), pairstore.Flat)
	fill(t, st, original)

	var buf bytes.Buffer
	em := NewEmitter(&buf, g, false)
	numPairs, err := em.Flush(st)
	require.NoError(t, err)
	assert.Equal(t, 4, numPairs)
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, int64(len(original)), em.NumEntries)

	out := buf.String()
	assert.Contains(t, out, "1:0 1\t4:51:2:0:1:0 3\t")
	assert.Contains(t, out, "2:0 0\t4:51:2:0:3:2 7.25\n")
	assert.Contains(t, out, "4:0 0\t3:6:1:0 0.0000001\n")
	assert.NotContains(t, out, "e-")

	fresh := pairstore.New(g.NumNodes(), pairstore.Flat)
	ing := NewIngester(fresh, nil)
	stopped, err := ing.IngestReader(&buf, nil)
	require.NoError(t, err)
	assert.False(t, stopped)
	assert.Equal(t, int64(4), ing.NumLines)

	got := dump(fresh)
	require.Len(t, got, len(original))
	for key, tally := range original {
		assert.InEpsilon(t, tally, got[key], 1e-12, key.Sig)
	}
}

func TestMergeCommutes(t *testing.T) {
	g := testGraph(t)
	partA := map[tallyKey]float64{
		{1, 0, "4:51:2:0:1:0"}: 2,
		{3, 2, "4:51:3:1:3:2"}: 0.5,
		{5, 4, "3:6:1:0"}:      1,
	}
	partB := map[tallyKey]float64{
		{1, 0, "4:51:2:0:1:0"}: 1,
		{1, 0, "4:50:3:0:1:0"}: 1.25,
		{5, 4, "3:6:1:0"}:      4,
	}

	onePass := pairstore.New(g.NumNodes(), pairstore.Flat)
	fill(t, onePass, partA)
	fill(t, onePass, partB)

	var buf bytes.Buffer
	for _, part := range []map[tallyKey]float64{partB, partA} {
		worker := pairstore.New(g.NumNodes(), pairstore.Flat)
		fill(t, worker, part)
		_, err := NewEmitter(&buf, g, false).Flush(worker)
		require.NoError(t, err)
	}

	merged := pairstore.New(g.NumNodes(), pairstore.Flat)
	_, err := NewIngester(merged, nil).IngestReader(&buf, nil)
	require.NoError(t, err)

	assert.Equal(t, dump(onePass), dump(merged))
}

func TestNestedRoundTrip(t *testing.T) {
	g := testGraph(t)
	entries := map[tallyKey]float64{
		{4, 1, "4:51:2:0:3:2"}: 2,
		{4, 1, "4:51:2:0:4:3"}: 1,
		{4, 1, "4:50:3:1:4:3"}: 1,
	}
	st := pairstore.New(g.NumNodes(), pairstore.Nested)
	fill(t, st, entries)

	var report bytes.Buffer
	_, err := NewEmitter(&report, g, false).Report(st, true)
	require.NoError(t, err)
	assert.Equal(t, "4:1 0\t4:50:3:1 1\t4:51:2:0 2\n", report.String())
	assert.Equal(t, 1, st.Len(), "a report leaves the store intact")

	var flushed bytes.Buffer
	_, err = NewEmitter(&flushed, g, false).Flush(st)
	require.NoError(t, err)

	fresh := pairstore.New(g.NumNodes(), pairstore.Nested)
	_, err = NewIngester(fresh, nil).IngestReader(&flushed, nil)
	require.NoError(t, err)
	assert.Equal(t, entries, dump(fresh))
}

func TestNames(t *testing.T) {
	g, err := graph.Load(strings.NewReader("alice bob\nbob carol\n"), graph.LoadOpts{Names: true})
	require.NoError(t, err)

	st := pairstore.New(g.NumNodes(), pairstore.Flat)
	fill(t, st, map[tallyKey]float64{{2, 0, "3:6:2:0:1:0"}: 1})

	var buf bytes.Buffer
	_, err = NewEmitter(&buf, g, true).Flush(st)
	require.NoError(t, err)
	assert.Equal(t, "carol:alice 0\t3:6:2:0:1:0 1\n", buf.String())

	fresh := pairstore.New(g.NumNodes(), pairstore.Flat)
	_, err = NewIngester(fresh, g).IngestReader(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, map[tallyKey]float64{{2, 0, "3:6:2:0:1:0"}: 1}, dump(fresh))

	err = NewIngester(fresh, g).IngestLine("dave:alice 0\t3:6:2:0:1:0 1\n")
	assert.ErrorIs(t, err, gopredict.ErrUnknownNode)
}

func TestIngestReaderStopsAndReportsLine(t *testing.T) {
	st := pairstore.New(8, pairstore.Flat)
	ing := NewIngester(st, nil)

	input := "1:0 0\t3:6:1:0 1\n2:0 0\t3:6:1:0 1\n3:0 0\t3:6:1:0 1\n"
	lines := 0
	stopped, err := ing.IngestReader(strings.NewReader(input), func() bool {
		lines++
		return lines == 2
	})
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, 2, st.Len())

	_, err = NewIngester(st, nil).IngestReader(strings.NewReader("1:0 0\t3:6:1:0 1\n2:0 0\t3:6:1:0 1"), nil)
	assert.ErrorIs(t, err, gopredict.ErrTruncatedLine)
	assert.Contains(t, err.Error(), "merge line 2")

	_, err = NewIngester(st, nil).IngestReader(strings.NewReader("1:0 0\t3:6:1:0 1\n9:0 0\t3:6:1:0 1\n"), nil)
	assert.ErrorIs(t, err, gopredict.ErrNodeRange)
}
