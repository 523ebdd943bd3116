package canon_test

import (
	"math/rand"
	"path"
	"testing"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/canon"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T, k int) *canon.Catalog {
	cat, err := canon.OpenCatalog(canon.CatalogOpts{K: k})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func path4(a, b, c, d int) graphlet.Graphlet {
	g := graphlet.New(4)
	g.Connect(a, b)
	g.Connect(b, c)
	g.Connect(c, d)
	return g
}

func TestCanonizeInvariant(t *testing.T) {
	cat := openMem(t, 4)

	// Every labeling of a 3-edge path shares one ordinal.
	var ords []gopredict.Ordinal
	for _, g := range []graphlet.Graphlet{path4(0, 1, 2, 3), path4(2, 0, 3, 1), path4(3, 2, 1, 0), path4(1, 3, 0, 2)} {
		ord, perm, err := cat.Canonize(g.Int())
		require.NoError(t, err)
		ords = append(ords, ord)

		canonical := graphlet.FromInt(4, cat.Canonical(ord))
		for c1 := 0; c1 < 4; c1++ {
			for c2 := 0; c2 < 4; c2++ {
				require.Equal(t, canonical.Has(c1, c2), g.Has(int(perm[c1]), int(perm[c2])))
			}
		}
	}
	for _, ord := range ords {
		assert.Equal(t, ords[0], ord)
	}

	// A canonical graphlet is its own representative
	ord, _, err := cat.Canonize(cat.Canonical(ords[0]))
	require.NoError(t, err)
	assert.Equal(t, ords[0], ord)

	_, _, err = cat.Canonize(1 << 6)
	assert.ErrorIs(t, err, gopredict.ErrBadSample)
}

func TestOrbits(t *testing.T) {
	cat := openMem(t, 4)

	// star: center and three equivalent leaves
	star := graphlet.New(4)
	star.Connect(0, 1)
	star.Connect(0, 2)
	star.Connect(0, 3)
	ord, _, err := cat.Canonize(star.Int())
	require.NoError(t, err)

	canonical := graphlet.FromInt(4, cat.Canonical(ord))
	orbitOf := map[int]int64{}
	for c := 0; c < 4; c++ {
		orbitOf[c], err = cat.OrbitID(ord, c)
		require.NoError(t, err)
	}

	var center int
	for c := 0; c < 4; c++ {
		if canonical.Degree(c) == 3 {
			center = c
		}
	}
	leaves := map[int64]bool{}
	for c := 0; c < 4; c++ {
		if c != center {
			leaves[orbitOf[c]] = true
			assert.NotEqual(t, orbitOf[center], orbitOf[c])
		}
	}
	assert.Len(t, leaves, 1)

	_, err = cat.OrbitID(ord, 4)
	assert.ErrorIs(t, err, gopredict.ErrNodeRange)
}

func TestCatalogPersists(t *testing.T) {
	dir := path.Join(t.TempDir(), "canon")

	cat, err := canon.OpenCatalog(canon.CatalogOpts{K: 5, DbPathName: dir})
	require.NoError(t, err)

	g := graphlet.New(5)
	g.Connect(0, 1)
	g.Connect(1, 2)
	g.Connect(2, 3)
	g.Connect(3, 4)
	g.Connect(4, 0)
	ord1, perm1, err := cat.Canonize(g.Int())
	require.NoError(t, err)
	require.NoError(t, cat.Close())

	cat, err = canon.OpenCatalog(canon.CatalogOpts{K: 5, DbPathName: dir})
	require.NoError(t, err)
	ord2, perm2, err := cat.Canonize(g.Int())
	require.NoError(t, err)
	assert.Equal(t, ord1, ord2)
	assert.Equal(t, perm1, perm2)
	require.NoError(t, cat.Close())

	_, err = canon.OpenCatalog(canon.CatalogOpts{K: 4, DbPathName: dir})
	assert.ErrorIs(t, err, gopredict.ErrConfig)

	// Read-only catalogs start from what is on disk and can be opened side by side.
	ro1, err := canon.OpenCatalog(canon.CatalogOpts{K: 5, DbPathName: dir, ReadOnly: true})
	require.NoError(t, err)
	ro2, err := canon.OpenCatalog(canon.CatalogOpts{K: 5, DbPathName: dir, ReadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, ro1.NumCached())
	ord3, perm3, err := ro2.Canonize(g.Int())
	require.NoError(t, err)
	assert.Equal(t, ord1, ord3)
	assert.Equal(t, perm1, perm3)

	star := graphlet.New(5)
	for i := 1; i < 5; i++ {
		star.Connect(0, i)
	}
	_, _, err = ro1.Canonize(star.Int())
	require.NoError(t, err)
	require.NoError(t, ro1.Close())
	require.NoError(t, ro2.Close())

	cat, err = canon.OpenCatalog(canon.CatalogOpts{K: 5, DbPathName: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.NumCached(), "read-only catalogs never write")
	require.NoError(t, cat.Close())

	_, err = canon.OpenCatalog(canon.CatalogOpts{K: 5, ReadOnly: true})
	assert.ErrorIs(t, err, gopredict.ErrConfig)

	_, err = canon.OpenCatalog(canon.CatalogOpts{K: 9})
	assert.ErrorIs(t, err, gopredict.ErrBadK)
}

// allPerms returns all k! permutations of 0..k-1.
func allPerms(k int) []gopredict.Perm {
	var perms []gopredict.Perm
	var cur gopredict.Perm
	var used [gopredict.MaxK]bool

	var gen func(depth int)
	gen = func(depth int) {
		if depth == k {
			perms = append(perms, cur)
			return
		}
		for i := 0; i < k; i++ {
			if !used[i] {
				used[i] = true
				cur[depth] = uint8(i)
				gen(depth + 1)
				used[i] = false
			}
		}
	}
	gen(0)
	return perms
}

func TestCanonizeMatchesExhaustive(t *testing.T) {
	for k := gopredict.MinK; k <= 5; k++ {
		cat := openMem(t, k)
		perms := allPerms(k)

		for gint := uint32(0); gint < 1<<uint(graphlet.NumEdgeBits(k)); gint++ {
			g := graphlet.FromInt(k, gint)

			var best uint32
			var autos []gopredict.Perm
			for i := range perms {
				if h := g.Permute(&perms[i]).Int(); h > best {
					best = h
				}
			}
			canonical := graphlet.FromInt(k, best)
			for i := range perms {
				if canonical.Permute(&perms[i]) == canonical {
					autos = append(autos, perms[i])
				}
			}

			ord, perm, err := cat.Canonize(gint)
			require.NoError(t, err)
			require.Equal(t, best, cat.Canonical(ord), "k=%d Gint %d", k, gint)
			require.Equal(t, best, g.Permute(&perm).Int(), "k=%d Gint %d", k, gint)

			for c := 0; c < k; c++ {
				rep := c
				for _, a := range autos {
					if int(a[c]) < rep {
						rep = int(a[c])
					}
				}
				id, err := cat.OrbitID(ord, c)
				require.NoError(t, err)
				require.Equal(t, int64(best)*int64(k)+int64(rep), id, "k=%d Gint %d position %d", k, gint, c)
			}
		}
	}
}

func TestCanonizeLargeK(t *testing.T) {
	rng := rand.New(rand.NewSource(8))

	for _, k := range []int{7, 8} {
		cat := openMem(t, k)
		numBits := graphlet.NumEdgeBits(k)

		complete := graphlet.FromInt(k, 1<<uint(numBits)-1)
		ord, _, err := cat.Canonize(complete.Int())
		require.NoError(t, err)
		assert.Equal(t, complete.Int(), cat.Canonical(ord))

		for trial := 0; trial < 200; trial++ {
			g := graphlet.FromInt(k, rng.Uint32()&(1<<uint(numBits)-1))
			ord, perm, err := cat.Canonize(g.Int())
			require.NoError(t, err)
			require.Equal(t, cat.Canonical(ord), g.Permute(&perm).Int())

			var relabel gopredict.Perm
			for i, p := range rng.Perm(k) {
				relabel[i] = uint8(p)
			}
			ord2, _, err := cat.Canonize(g.Permute(&relabel).Int())
			require.NoError(t, err)
			require.Equal(t, ord, ord2, "k=%d Gint %d", k, g.Int())
		}
	}
}
