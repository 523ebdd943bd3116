package canon

import (
	"runtime"
	"sync"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/graphlet"
	"github.com/dgraph-io/badger/v4"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

/***

Canonical catalog format:

	gCatalogStateKey => k (byte), catalog version (varint)

	k (byte), Gint (uint32, big endian)     => Ordinal (varint), Perm[:k] (raw bytes)
	...

The canonical representative of a graphlet is the relabeling with the largest Gint, and the
ordinal of a canonical graphlet is that Gint.  This keeps ordinals identical across worker
processes without any shared table: two processes that never saw each other's catalog still
produce the same signatures.

Canonical forms come from a pruned search (see canonSearch).  When DbPathName is set, the
entries already on disk are loaded when the catalog opens and new ones are written in batches,
so canonizing never waits on badger.

***/

var (
	gCatalogStateKey = []byte{0x00, 0x00, 0x01}
)

const (
	catalogVersion = 2025

	// Entries beyond this many are computed on every request and never cached or persisted.
	maxCached = 1 << 18

	// New entries are written to badger once this many are pending, and on Close.
	storeBatchSize = 4096
)

// CatalogOpts specifies params for opening a canonical Catalog
type CatalogOpts struct {
	K          int
	DbPathName string // omit for an in-memory catalog
	ReadOnly   bool   // load an existing catalog but never write to it
}

type entry struct {
	ord  gopredict.Ordinal
	perm gopredict.Perm
}

// Catalog canonicalizes graphlets and caches the results, optionally in badger across runs.
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	k          int
	readOnly   bool
	persistent bool
	db         *badger.DB

	mu      sync.Mutex
	cache   map[uint32]entry
	pending []uint32 // cached Gints not yet written to db
	orbits  map[gopredict.Ordinal]gopredict.Perm
}

var _ gopredict.Canonicalizer = (*Catalog)(nil)

func OpenCatalog(opts CatalogOpts) (*Catalog, error) {
	if opts.K < gopredict.MinK || opts.K > gopredict.MaxK {
		return nil, errors.Wrapf(gopredict.ErrBadK, "k=%d", opts.K)
	}

	cat := &Catalog{
		k:        opts.K,
		readOnly: opts.ReadOnly,
		cache:    make(map[uint32]entry),
		orbits:   make(map[gopredict.Ordinal]gopredict.Perm),
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // not needed so disable for performance
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(gopredict.ErrConfig, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}
	cat.persistent = !dbOpts.InMemory

	var err error
	cat.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, errors.Wrap(err, "opening canonical catalog")
	}

	if err = cat.checkState(); err == nil && cat.persistent {
		err = cat.loadEntries()
	}
	if err != nil {
		cat.Close()
		return nil, err
	}

	return cat, nil
}

func (cat *Catalog) checkState() error {
	var stateK, vers uint64
	err := cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			buf := proto.NewBuffer(val)
			if stateK, err = buf.DecodeVarint(); err != nil {
				return err
			}
			vers, err = buf.DecodeVarint()
			return err
		})
	})

	if err == badger.ErrKeyNotFound {
		if cat.readOnly {
			return errors.Wrap(gopredict.ErrConfig, "read-only canonical catalog is empty")
		}
		buf := proto.NewBuffer(nil)
		buf.EncodeVarint(uint64(cat.k))
		buf.EncodeVarint(catalogVersion)
		return cat.db.Update(func(txn *badger.Txn) error {
			return txn.Set(gCatalogStateKey, buf.Bytes())
		})
	}
	if err != nil {
		return errors.Wrap(err, "reading canonical catalog state")
	}
	if vers != catalogVersion {
		return errors.Wrap(gopredict.ErrConfig, "canonical catalog version is incompatible")
	}
	if int(stateK) != cat.k {
		return errors.Wrapf(gopredict.ErrConfig, "canonical catalog was built for k=%d, not k=%d", stateK, cat.k)
	}
	return nil
}

// Close writes any pending entries and closes the catalog.
func (cat *Catalog) Close() error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	if cat.db == nil {
		return nil
	}
	err := cat.storePending()
	if cerr := cat.db.Close(); err == nil {
		err = cerr
	}
	cat.db = nil
	return err
}

func (cat *Catalog) K() int {
	return cat.k
}

// NumCached returns how many distinct graphlets are cached, including those loaded from disk.
func (cat *Catalog) NumCached() int {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	return len(cat.cache)
}

func (cat *Catalog) Canonical(ord gopredict.Ordinal) uint32 {
	return uint32(ord)
}

func (cat *Catalog) Canonize(gint uint32) (gopredict.Ordinal, gopredict.Perm, error) {
	if gint>>uint(graphlet.NumEdgeBits(cat.k)) != 0 {
		return 0, gopredict.Perm{}, errors.Wrapf(gopredict.ErrBadSample, "Gint %d exceeds k=%d", gint, cat.k)
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()

	if e, found := cat.cache[gint]; found {
		return e.ord, e.perm, nil
	}

	canonical, perm := searchCanonical(graphlet.FromInt(cat.k, gint))
	e := entry{
		ord:  gopredict.Ordinal(canonical),
		perm: perm,
	}
	if len(cat.cache) < maxCached {
		cat.cache[gint] = e
		if cat.persistent && !cat.readOnly && cat.db != nil {
			cat.pending = append(cat.pending, gint)
			if len(cat.pending) >= storeBatchSize {
				if err := cat.storePending(); err != nil {
					return 0, gopredict.Perm{}, errors.Wrapf(err, "canonizing Gint %d", gint)
				}
			}
		}
	}
	return e.ord, e.perm, nil
}

func formEntryKey(key []byte, k int, gint uint32) {
	key[0] = byte(k)
	key[1] = byte(gint >> 24)
	key[2] = byte(gint >> 16)
	key[3] = byte(gint >> 8)
	key[4] = byte(gint)
}

// loadEntries reads every stored entry for this k into the cache.
func (cat *Catalog) loadEntries() error {
	prefix := []byte{byte(cat.k)}
	err := cat.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		itr := txn.NewIterator(opts)
		defer itr.Close()

		for itr.Seek(prefix); itr.ValidForPrefix(prefix) && len(cat.cache) < maxCached; itr.Next() {
			item := itr.Item()
			key := item.Key()
			if len(key) != 5 {
				continue
			}
			gint := uint32(key[1])<<24 | uint32(key[2])<<16 | uint32(key[3])<<8 | uint32(key[4])
			err := item.Value(func(val []byte) error {
				e, err := cat.decodeEntry(val)
				if err == nil {
					cat.cache[gint] = e
				}
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "loading canonical catalog")
}

func (cat *Catalog) decodeEntry(val []byte) (entry, error) {
	var e entry
	buf := proto.NewBuffer(val)
	ord, err := buf.DecodeVarint()
	if err != nil {
		return e, err
	}
	perm, err := buf.DecodeRawBytes(false)
	if err != nil {
		return e, err
	}
	if len(perm) != cat.k {
		return e, errors.Wrap(gopredict.ErrInvariant, "catalog perm length mismatch")
	}
	e.ord = gopredict.Ordinal(ord)
	copy(e.perm[:], perm)
	return e, nil
}

// storePending writes the pending entries in one batch.  cat.mu must be held.
func (cat *Catalog) storePending() error {
	if len(cat.pending) == 0 || cat.readOnly {
		cat.pending = cat.pending[:0]
		return nil
	}

	wb := cat.db.NewWriteBatch()
	defer wb.Cancel()

	for _, gint := range cat.pending {
		e := cat.cache[gint]
		key := make([]byte, 5)
		formEntryKey(key, cat.k, gint)

		buf := proto.NewBuffer(make([]byte, 0, 16))
		buf.EncodeVarint(uint64(e.ord))
		buf.EncodeRawBytes(e.perm[:cat.k])
		if err := wb.Set(key, buf.Bytes()); err != nil {
			return errors.Wrap(err, "storing canonical catalog entries")
		}
	}
	cat.pending = cat.pending[:0]
	return errors.Wrap(wb.Flush(), "storing canonical catalog entries")
}

// OrbitID returns ord*k plus the smallest canonical position automorphic to c.
func (cat *Catalog) OrbitID(ord gopredict.Ordinal, c int) (int64, error) {
	if c < 0 || c >= cat.k {
		return 0, errors.Wrapf(gopredict.ErrNodeRange, "canonical position %d", c)
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()

	reps, found := cat.orbits[ord]
	if !found {
		reps = searchOrbits(graphlet.FromInt(cat.k, uint32(ord)))
		cat.orbits[ord] = reps
	}

	return int64(ord)*int64(cat.k) + int64(reps[c]), nil
}
