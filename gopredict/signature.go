package gopredict

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

/***

Association signature format

	k:<pair>[:q:r][:x:y]

	<pair> is either g:o:p (canonical ordinal + canonical node pair, o > p)
	or A:B (global orbit IDs, A >= B).

	The trailing x:y is always exactly two fields wide, so a signature splits into
	prefix + tail without knowing which mode produced it.  In the memo, x:y are node
	positions of the top canonical graphlet; once transferred onto a sample they are
	node indices of G.

Signatures share structured prefixes, so their string order also groups them.

***/

// TailFields is the fixed width of a signature's trailing internal edge.
const TailFields = 2

// AppendCanonicalIdentity appends "k:g:o:p" to dst.
func AppendCanonicalIdentity(dst []byte, k int, g Ordinal, o, p int) []byte {
	dst = strconv.AppendInt(dst, int64(k), 10)
	dst = append(dst, ':')
	dst = strconv.AppendUint(dst, uint64(g), 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(o), 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(p), 10)
	return dst
}

// AppendOrbitIdentity appends "k:A:B" to dst, ordering the orbit IDs so that A >= B.
func AppendOrbitIdentity(dst []byte, k int, orbitA, orbitB int64) []byte {
	if orbitA < orbitB {
		orbitA, orbitB = orbitB, orbitA
	}
	dst = strconv.AppendInt(dst, int64(k), 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, orbitA, 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, orbitB, 10)
	return dst
}

// AppendEdge appends ":x:y" to dst, ordering the pair so that x > y.
func AppendEdge(dst []byte, x, y int) []byte {
	if x < y {
		x, y = y, x
	}
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(x), 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(y), 10)
	return dst
}

// SplitTail splits sig into its prefix and its trailing "x:y" internal edge.
func SplitTail(sig string) (prefix, tail string, err error) {
	cut := len(sig)
	for i := 0; i < TailFields; i++ {
		cut = strings.LastIndexByte(sig[:cut], ':')
		if cut <= 0 {
			return "", "", errors.Wrapf(ErrBadSignature, "%q has no x:y tail", sig)
		}
	}
	return sig[:cut], sig[cut+1:], nil
}

// CheckSignature verifies sig is a colon-joined list of at least three non-negative integers
// whose leading field is a supported k.
func CheckSignature(sig string) error {
	fields := 0
	start := 0
	for i := 0; i <= len(sig); i++ {
		if i < len(sig) && sig[i] != ':' {
			if sig[i] < '0' || sig[i] > '9' {
				return errors.Wrapf(ErrBadSignature, "%q", sig)
			}
			continue
		}
		if i == start {
			return errors.Wrapf(ErrBadSignature, "%q has an empty field", sig)
		}
		if fields == 0 {
			k, _ := strconv.Atoi(sig[start:i])
			if k < MinK || k > MaxK {
				return errors.Wrapf(ErrBadK, "signature %q", sig)
			}
		}
		fields++
		start = i + 1
	}
	if fields < 3 {
		return errors.Wrapf(ErrBadSignature, "%q has too few fields", sig)
	}
	return nil
}

// ValidateSignature checks sig by CheckSignature and then checks every field against k.
//
// The number of fields tells the layout apart: k:A:B (orbit) or k:g:o:p (canonical), then an
// optional quad edge q:r, then an optional internal edge x:y.  An orbit ID must be below
// 2^B(k) * k with A >= B.  An ordinal must be below 2^B(k) with k > o > p, and likewise k > q > r.
// x > y are nodes of G, so if numNodes > 0, x must be below it.
func ValidateSignature(sig string, numNodes int) error {
	if err := CheckSignature(sig); err != nil {
		return err
	}

	var fields [8]uint64
	n := 0
	for start := 0; start <= len(sig); {
		end := strings.IndexByte(sig[start:], ':')
		if end < 0 {
			end = len(sig)
		} else {
			end += start
		}
		if n == len(fields) {
			return errors.Wrapf(ErrBadSignature, "%q has too many fields", sig)
		}
		v, err := strconv.ParseUint(sig[start:end], 10, 64)
		if err != nil {
			return errors.Wrapf(ErrBadSignature, "%q", sig)
		}
		fields[n] = v
		n++
		start = end + 1
	}

	k := fields[0]
	numGints := uint64(1) << uint(k*(k-1)/2)
	canonical := n%2 == 0
	rest := fields[3:n]
	if canonical {
		g, o, p := fields[1], fields[2], fields[3]
		if g >= numGints || o >= k || p >= o {
			return errors.Wrapf(ErrBadSignature, "%q: canonical pair out of range", sig)
		}
		rest = fields[4:n]
	} else if a, b := fields[1], fields[2]; a >= numGints*k || b > a {
		return errors.Wrapf(ErrBadSignature, "%q: orbit pair out of range", sig)
	}

	switch len(rest) {
	case 0:
		return nil
	case 2, 4:
	default:
		return errors.Wrapf(ErrBadSignature, "%q has %d fields", sig, n)
	}

	if len(rest) == 4 {
		q, r := rest[0], rest[1]
		if q >= k || r >= q || (canonical && q == fields[2] && r == fields[3]) {
			return errors.Wrapf(ErrBadSignature, "%q: quad edge out of range", sig)
		}
		rest = rest[2:]
	}

	x, y := rest[0], rest[1]
	if x <= y {
		return errors.Wrapf(ErrBadSignature, "%q: internal edge is not ordered", sig)
	}
	if numNodes > 0 && x >= uint64(numNodes) {
		return errors.Wrapf(ErrNodeRange, "%q: node %d of %d", sig, x, numNodes)
	}
	return nil
}
