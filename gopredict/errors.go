package gopredict

import "errors"

// Errors
var (
	ErrConfig        = errors.New("bad predict configuration")
	ErrBadK          = errors.New("graphlet size k out of range")
	ErrBadLine       = errors.New("malformed merge line")
	ErrTruncatedLine = errors.New("merge line missing newline terminator")
	ErrBadSignature  = errors.New("malformed association signature")
	ErrNodeRange     = errors.New("node index out of range")
	ErrUnknownNode   = errors.New("node name not in graph")
	ErrBadSample     = errors.New("malformed graphlet sample")
	ErrNotCanonical  = errors.New("graphlet is not canonical")
	ErrInvariant     = errors.New("internal invariant violated")
	ErrStoreLayout   = errors.New("operation not supported by pair store layout")
	ErrOneClass      = errors.New("scoring needs both positive and negative labels")
)
