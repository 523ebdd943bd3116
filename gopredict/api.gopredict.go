package gopredict

const (

	// MinK is the smallest supported graphlet size.
	MinK = 3

	// MaxK is the largest supported graphlet size; B(MaxK) edge bits must fit in a uint32.
	MaxK = 8

	// MaxEdgeBits is B(MaxK), the number of possible edges in a graphlet.
	MaxEdgeBits = MaxK * (MaxK - 1) / 2
)

// Ordinal identifies a canonical graphlet (an isomorphism class of k-node graphs).
type Ordinal uint32

// Perm maps canonical node positions to the nodes of one particular graphlet:
// Perm[c] is the graphlet node sitting at canonical position c.
type Perm [MaxK]uint8

// Canonicalizer maps a bit-graphlet integer to its canonical ordinal.
//
// Implementations are expected to be deterministic across processes since ordinals
// are embedded in association signatures exchanged by the merge protocol.
type Canonicalizer interface {

	// K returns the graphlet size this canonicalizer was built for.
	K() int

	// Canonize returns the ordinal of the given graphlet along with the perm relating it to its canonical form.
	Canonize(gint uint32) (Ordinal, Perm, error)

	// Canonical returns the bit-graphlet integer of the canonical representative of ord.
	Canonical(ord Ordinal) uint32

	// OrbitID returns the global automorphism orbit ID of canonical position c of ord.
	OrbitID(ord Ordinal, c int) (int64, error)
}

// NameResolver resolves external node names to node indices of the large graph.
type NameResolver interface {
	NodeIndex(name string) (int, bool)
}

// Graph is the read-only view of the large input graph G needed by prediction.
type Graph interface {
	NameResolver

	// NumNodes returns n; valid node indices are 0..n-1.
	NumNodes() int

	// Degree returns the number of neighbors of node u.
	Degree(u int) int

	// HasEdge returns true if (u,v) is an edge of G.
	HasEdge(u, v int) bool

	// NodeName returns the external name of u, or its decimal index when G has no names.
	NodeName(u int) string
}

// Sample is one graphlet drawn from G by an external sampler.
type Sample struct {
	Varray  []int   // Varray[i] is the node of G at graphlet node i
	Gint    uint32  // bit-graphlet integer of the induced subgraph on Varray
	Ordinal Ordinal // canonical ordinal of Gint
	Perm    Perm    // Perm[c] is the graphlet node at canonical position c
}

// OrbitFilter is the optional set of predictive canonical-pair identities.
type OrbitFilter interface {
	Contains(ident string) bool
	Len() int
}

// PredictOpts selects the signature and weighting variants for a run.
type PredictOpts struct {
	K         int
	Signature SignatureMode
	Identity  PairIdentity
	Weighting Weighting
	Filter    OrbitFilter // nil denotes no filter
}

// Pair is a node pair of G, always normalized so that U > V.
type Pair struct {
	U, V int
}

// MakePair returns the normalized pair for u and v.
func MakePair(u, v int) Pair {
	if u < v {
		u, v = v, u
	}
	return Pair{U: u, V: v}
}
