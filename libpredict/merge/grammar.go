// Package merge implements the line protocol workers use to surface partial pair stores
// to a coordinator, and the coordinator uses to re-aggregate them.
package merge

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/***

Merge line format (one line per non-empty node pair):

	<u>:<v> <edge01>\t<sig1> <tally1>\t<sig2> <tally2>...\n

u and v are node indices or names, edge01 is 1 if (u,v) is an edge of G, each sig is a
colon-joined association signature and each tally is an integer or decimal.

***/

type lineExpr struct {
	U       string       `parser:"@(Int | Float | Name)+ \":\""`
	V       string       `parser:"@(Int | Float | Name)+"`
	Edge    string       `parser:"Space @Int"`
	Entries []*entryExpr `parser:"( Tab @@ )+"`
}

type entryExpr struct {
	Sig   string `parser:"@Int ( @\":\" @Int )+"`
	Tally string `parser:"Space @(Float | Int)"`
}

var mergeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Tab", Pattern: `\t`},
	{Name: "Space", Pattern: ` `},
	{Name: "Colon", Pattern: `:`},
	{Name: "Float", Pattern: `[0-9]+\.[0-9]*([eE][-+]?[0-9]+)?|[0-9]+[eE][-+]?[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+\b`},
	{Name: "Name", Pattern: `[^:\s]+`},
})

var parseLineExpr = participle.MustBuild[lineExpr](participle.Lexer(mergeLexer))
