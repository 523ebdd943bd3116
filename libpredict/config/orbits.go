package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/pkg/errors"
)

// OrbitFilter is the immutable set of predictive canonical pair identities ("k:g:o:p" or "k:A:B").
type OrbitFilter struct {
	set *hashset.Set
}

var _ gopredict.OrbitFilter = (*OrbitFilter)(nil)

func (f *OrbitFilter) Contains(ident string) bool {
	return f.set.Contains(ident)
}

func (f *OrbitFilter) Len() int {
	return f.set.Size()
}

// NewOrbitFilter validates each token as a pair identity of size k.
func NewOrbitFilter(tokens []string, k int) (*OrbitFilter, error) {
	f := &OrbitFilter{
		set: hashset.New(),
	}
	for _, tok := range tokens {
		if err := checkIdentity(tok, k); err != nil {
			return nil, err
		}
		f.set.Add(tok)
	}
	return f, nil
}

func checkIdentity(tok string, k int) error {
	if err := gopredict.CheckSignature(tok); err != nil {
		return errors.Wrapf(gopredict.ErrConfig, "orbit filter token %q: %v", tok, err)
	}
	fields := strings.Split(tok, ":")
	if len(fields) != 3 && len(fields) != 4 {
		return errors.Wrapf(gopredict.ErrConfig, "orbit filter token %q is not k:A:B or k:g:o:p", tok)
	}
	if fields[0] != strconv.Itoa(k) {
		return errors.Wrapf(gopredict.ErrConfig, "orbit filter token %q is not for k=%d", tok, k)
	}
	return nil
}

// LoadOrbitFilter interprets source as either an inline whitespace-separated list of pair identities
// or the name of a file holding one identity per line.  A source that is both is rejected.
// An empty source returns a nil filter.
func LoadOrbitFilter(source string, k int) (*OrbitFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}

	inline := strings.Fields(source)
	inlineValid := true
	for _, tok := range inline {
		if checkIdentity(tok, k) != nil {
			inlineValid = false
			break
		}
	}

	info, statErr := os.Stat(source)
	isFile := statErr == nil && !info.IsDir()

	switch {
	case isFile && inlineValid:
		return nil, errors.Wrapf(gopredict.ErrConfig, "orbit filter %q is both a valid inline list and an existing file", source)
	case inlineValid:
		return NewOrbitFilter(inline, k)
	case isFile:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, errors.Wrapf(gopredict.ErrConfig, "reading orbit filter: %v", err)
		}
		f, err := NewOrbitFilter(strings.Fields(string(data)), k)
		if err != nil {
			return nil, errors.Wrapf(err, "orbit filter file %q", source)
		}
		return f, nil
	default:
		return nil, errors.Wrapf(gopredict.ErrConfig, "orbit filter %q is neither a file nor a list of k:pair tokens", source)
	}
}
