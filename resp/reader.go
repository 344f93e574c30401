package resp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Reader parses reply frames from a connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader returns a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadReply reads and parses the next reply frame. It blocks until a
// full frame is available. Any parse error means the stream position
// is no longer trustworthy and the connection must be discarded.
func (r *Reader) ReadReply() (*Reply, error) {
	return r.readReply(0)
}

func (r *Reader) readReply(depth int) (*Reply, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting depth %d exceeds limit %d", ErrLimitExceeded, depth, MaxDepth)
	}

	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	marker, rest := line[0], string(line[1:])
	switch Kind(marker) {
	case KindSimpleString:
		return &Reply{Kind: KindSimpleString, Str: rest}, nil

	case KindError:
		return &Reply{Kind: KindError, Str: rest}, nil

	case KindInteger:
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, rest)
		}
		return &Reply{Kind: KindInteger, Int: n}, nil

	case KindBulkString, KindVerbatim:
		b, null, err := r.readBulkBody(rest)
		if err != nil {
			return nil, err
		}
		rep := &Reply{Kind: Kind(marker), Bulk: b, Null: null}
		if Kind(marker) == KindVerbatim && !null {
			// "txt:" / "mkd:" prefix is part of the payload framing.
			if len(b) < 4 || b[3] != ':' {
				return nil, fmt.Errorf("%w: malformed verbatim string", ErrProtocol)
			}
			rep.Str = string(b[:3])
			rep.Bulk = b[4:]
		}
		return rep, nil

	case KindArray, KindSet, KindPush:
		elems, null, err := r.readAggregate(rest, 1, depth)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: Kind(marker), Elems: elems, Null: null}, nil

	case KindMap:
		elems, null, err := r.readAggregate(rest, 2, depth)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: KindMap, Elems: elems, Null: null}, nil

	case KindNull:
		if rest != "" {
			return nil, fmt.Errorf("%w: null carries payload %q", ErrProtocol, rest)
		}
		return &Reply{Kind: KindNull, Null: true}, nil

	case KindDouble:
		f, err := parseDouble(rest)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: KindDouble, Float: f}, nil

	case KindBoolean:
		switch rest {
		case "t":
			return &Reply{Kind: KindBoolean, Int: 1}, nil
		case "f":
			return &Reply{Kind: KindBoolean, Int: 0}, nil
		}
		return nil, fmt.Errorf("%w: invalid boolean %q", ErrProtocol, rest)

	case KindBigNumber:
		if rest == "" {
			return nil, fmt.Errorf("%w: empty big number", ErrProtocol)
		}
		return &Reply{Kind: KindBigNumber, Str: rest}, nil
	}

	return nil, fmt.Errorf("%w: unknown reply marker %q", ErrProtocol, marker)
}

// readBulkBody reads the payload of a bulk-style frame whose length
// header has already been consumed.
func (r *Reader) readBulkBody(header string) ([]byte, bool, error) {
	n, err := strconv.Atoi(header)
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, header)
	}
	if n == -1 {
		return nil, true, nil
	}
	if n < 0 {
		return nil, false, fmt.Errorf("%w: invalid bulk length %d", ErrProtocol, n)
	}
	if n > MaxBulkLen {
		return nil, false, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, false, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, false, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], false, nil
}

// readAggregate reads n*stride child frames. stride is 2 for maps.
func (r *Reader) readAggregate(header string, stride, depth int) ([]*Reply, bool, error) {
	n, err := strconv.Atoi(header)
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid aggregate length %q", ErrProtocol, header)
	}
	if n == -1 {
		return nil, true, nil
	}
	if n < 0 {
		return nil, false, fmt.Errorf("%w: invalid aggregate length %d", ErrProtocol, n)
	}
	if n > MaxArrayLen {
		return nil, false, fmt.Errorf("%w: aggregate length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	elems := make([]*Reply, 0, n*stride)
	for i := 0; i < n*stride; i++ {
		el, err := r.readReply(depth + 1)
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, el)
	}
	return elems, false, nil
}

func (r *Reader) readLine() ([]byte, error) {
	var buf []byte
	for {
		frag, err := r.br.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if err == bufio.ErrBufferFull {
			buf = append(buf, frag...)
			if len(buf) > MaxLineLen {
				return nil, fmt.Errorf("%w: line exceeds limit %d", ErrLimitExceeded, MaxLineLen)
			}
			continue
		}
		return nil, err
	}

	if len(buf) > MaxLineLen {
		return nil, fmt.Errorf("%w: line exceeds limit %d", ErrLimitExceeded, MaxLineLen)
	}
	if len(buf) < 2 || buf[len(buf)-2] != '\r' {
		return nil, fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return buf[:len(buf)-2], nil
}

func parseDouble(s string) (float64, error) {
	switch s {
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid double %q", ErrProtocol, s)
	}
	return f, nil
}
