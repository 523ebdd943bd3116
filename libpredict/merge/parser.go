package merge

import (
	"strconv"
	"strings"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/pkg/errors"
)

// Entry is one (signature, tally) field of a merge line.
type Entry struct {
	Sig   string
	Tally float64
}

// Record is one parsed merge line.
type Record struct {
	U, V    int
	Edge    bool
	Entries []Entry
}

// Parser turns merge lines into Records.
type Parser struct {
	names    gopredict.NameResolver // nil if node tokens are plain indices
	numNodes int                    // bounds the internal edge of each signature, 0 if unknown
}

// NewParser returns a Parser resolving node tokens through names, or as decimal indices if names is nil.
// Signatures whose internal edge names a node >= numNodes are rejected unless numNodes is 0.
func NewParser(names gopredict.NameResolver, numNodes int) *Parser {
	return &Parser{
		names:    names,
		numNodes: numNodes,
	}
}

// ParseLine parses one merge line, which must include its terminating newline.
// The line is never modified.
func (p *Parser) ParseLine(line string) (*Record, error) {
	if !strings.HasSuffix(line, "\n") {
		return nil, errors.Wrapf(gopredict.ErrTruncatedLine, "%q", clip(line))
	}
	body := line[:len(line)-1]

	expr, err := parseLineExpr.ParseString("", body)
	if err != nil {
		return nil, errors.Wrapf(gopredict.ErrBadLine, "%v", err)
	}

	rec := &Record{
		Entries: make([]Entry, 0, len(expr.Entries)),
	}
	if rec.U, err = p.resolve(expr.U); err != nil {
		return nil, err
	}
	if rec.V, err = p.resolve(expr.V); err != nil {
		return nil, err
	}
	if rec.U < rec.V {
		rec.U, rec.V = rec.V, rec.U
	}

	switch expr.Edge {
	case "0":
	case "1":
		rec.Edge = true
	default:
		return nil, errors.Wrapf(gopredict.ErrBadLine, "edge flag %q", expr.Edge)
	}

	for _, entry := range expr.Entries {
		if err = gopredict.ValidateSignature(entry.Sig, p.numNodes); err != nil {
			return nil, err
		}
		tally, err := strconv.ParseFloat(entry.Tally, 64)
		if err != nil {
			return nil, errors.Wrapf(gopredict.ErrBadLine, "tally %q", entry.Tally)
		}
		rec.Entries = append(rec.Entries, Entry{
			Sig:   entry.Sig,
			Tally: tally,
		})
	}
	return rec, nil
}

func (p *Parser) resolve(token string) (int, error) {
	if p.names != nil {
		u, found := p.names.NodeIndex(token)
		if !found {
			return 0, errors.Wrapf(gopredict.ErrUnknownNode, "%q", token)
		}
		return u, nil
	}
	u, err := strconv.Atoi(token)
	if err != nil {
		return 0, errors.Wrapf(gopredict.ErrBadLine, "node %q is not an index", token)
	}
	if u < 0 {
		return 0, errors.Wrapf(gopredict.ErrNodeRange, "node %d", u)
	}
	return u, nil
}

func clip(line string) string {
	if len(line) > 40 {
		return line[:40] + "..."
	}
	return line
}
