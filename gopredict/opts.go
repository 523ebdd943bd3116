package gopredict

import (
	"strings"

	"github.com/pkg/errors"
)

// SignatureMode selects how much of a sub-motif is encoded in an association signature.
type SignatureMode int32

const (
	SigPairOnly SignatureMode = iota // k:<pair>
	SigEdge                          // k:<pair>:x:y
	SigQuad                          // k:<pair>:q:r:x:y
)

// PairIdentity selects how the canonical pair portion of a signature is written.
type PairIdentity int32

const (
	IdentityCanonical PairIdentity = iota // g:o:p
	IdentityOrbit                         // orbitA:orbitB
)

// Weighting selects how each transferred association is weighted into the pair store.
//
// Which scheme yields calibrated predictions is unresolved, so all of them are kept selectable.
type Weighting int32

const (
	WeightUniform  Weighting = iota // every association counts 1
	WeightDegree                    // sum of 1/deg over the sample minus the pair's own 1/deg terms
	WeightDistinct                  // count distinct internal edges per (pair, prefix)
)

var (
	sigModeNames   = []string{"pair", "edge", "quad"}
	identityNames  = []string{"canonical", "orbit"}
	weightingNames = []string{"uniform", "degree", "distinct"}
)

func (m SignatureMode) String() string { return enumName(sigModeNames, int(m)) }
func (id PairIdentity) String() string { return enumName(identityNames, int(id)) }
func (w Weighting) String() string     { return enumName(weightingNames, int(w)) }

// HasTail returns true if signatures of this mode end in an x:y internal edge.
func (m SignatureMode) HasTail() bool {
	return m != SigPairOnly
}

func ParseSignatureMode(s string) (SignatureMode, error) {
	idx, err := enumParse(sigModeNames, s)
	return SignatureMode(idx), err
}

func ParsePairIdentity(s string) (PairIdentity, error) {
	idx, err := enumParse(identityNames, s)
	return PairIdentity(idx), err
}

func ParseWeighting(s string) (Weighting, error) {
	idx, err := enumParse(weightingNames, s)
	return Weighting(idx), err
}

// Validate checks that the options describe a usable combination.
func (opts *PredictOpts) Validate() error {
	if opts.K < MinK || opts.K > MaxK {
		return errors.Wrapf(ErrBadK, "k=%d", opts.K)
	}
	if opts.Weighting == WeightDistinct && !opts.Signature.HasTail() {
		return errors.Wrap(ErrConfig, "distinct weighting requires edge or quad signatures")
	}
	return nil
}

func enumName(names []string, idx int) string {
	if idx < 0 || idx >= len(names) {
		return "?"
	}
	return names[idx]
}

func enumParse(names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrConfig, "%q is not one of %v", s, names)
}
