// Package resp implements the Redis serialization protocol for the
// client side: commands out as arrays of bulk strings, replies in as
// typed frames.
//
// The reader understands both RESP2 and the RESP3 extensions (double,
// boolean, map, set, push, verbatim, big number, null). Reply shapes
// other than errors are passed through untouched; interpreting them
// against an expected result type is the job of the typed-result
// layer above this package.
package resp

import "errors"

// Protocol limits. A desynced or hostile peer must not make the
// reader allocate without bound.
const (
	// MaxBulkLen limits a single bulk string (512MB, the server-side
	// proto-max-bulk-len default).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxArrayLen limits the element count of a single aggregate reply.
	MaxArrayLen = 1024 * 1024

	// MaxLineLen limits any single protocol line.
	MaxLineLen = 64 * 1024

	// MaxDepth limits aggregate nesting.
	MaxDepth = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Kind identifies a reply type by its protocol marker byte.
type Kind byte

const (
	KindSimpleString Kind = '+'
	KindError        Kind = '-'
	KindInteger      Kind = ':'
	KindBulkString   Kind = '$'
	KindArray        Kind = '*'
	KindNull         Kind = '_'
	KindDouble       Kind = ','
	KindBoolean      Kind = '#'
	KindBigNumber    Kind = '('
	KindVerbatim     Kind = '='
	KindMap          Kind = '%'
	KindSet          Kind = '~'
	KindPush         Kind = '>'
)

// Reply is one parsed reply frame.
//
// Exactly which fields are meaningful depends on Kind: Str for simple
// strings, errors and big numbers; Int for integers and booleans
// (0/1); Float for doubles; Bulk for bulk and verbatim strings; Elems
// for arrays, sets, pushes and maps (maps keep their pairs flattened,
// key then value). Null reports RESP2 null bulk/array as well as the
// RESP3 null type.
type Reply struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bulk  []byte
	Elems []*Reply
	Null  bool
}

// IsError reports whether the reply is an error reply.
func (r *Reply) IsError() bool {
	return r != nil && r.Kind == KindError
}

// ErrorLine returns the raw error line for an error reply, "" otherwise.
// Redirection replies (MOVED, ASK, ...) are sniffed from this line.
func (r *Reply) ErrorLine() string {
	if !r.IsError() {
		return ""
	}
	return r.Str
}

// Text returns the most natural string form of a scalar reply. Bulk
// payload for bulk/verbatim kinds, Str otherwise. Aggregates return "".
func (r *Reply) Text() string {
	if r == nil || r.Null {
		return ""
	}
	switch r.Kind {
	case KindBulkString, KindVerbatim:
		return string(r.Bulk)
	case KindSimpleString, KindError, KindBigNumber:
		return r.Str
	}
	return ""
}
