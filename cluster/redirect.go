package cluster

import (
	"strconv"
	"strings"

	"github.com/thachlp/lettuce/slot"
)

// RedirectKind classifies a redirect-bearing error reply.
type RedirectKind int

const (
	RedirectNone RedirectKind = iota
	RedirectMoved
	RedirectAsk
	RedirectTryAgain
	RedirectClusterDown
)

func (k RedirectKind) String() string {
	switch k {
	case RedirectMoved:
		return "moved"
	case RedirectAsk:
		return "ask"
	case RedirectTryAgain:
		return "tryagain"
	case RedirectClusterDown:
		return "clusterdown"
	}
	return "none"
}

// Redirect is a parsed redirection instruction.
type Redirect struct {
	Kind RedirectKind
	Slot uint16 // Moved and Ask only
	Addr string // Moved and Ask only
}

// ParseRedirect sniffs an error reply line for the redirection
// keywords. Error lines that are not redirections — including ones we
// fail to parse — come back as RedirectNone and pass through to the
// caller untouched, like every other reply shape.
func ParseRedirect(line string) Redirect {
	switch {
	case strings.HasPrefix(line, "MOVED "):
		return parseTarget(line[len("MOVED "):], RedirectMoved)
	case strings.HasPrefix(line, "ASK "):
		return parseTarget(line[len("ASK "):], RedirectAsk)
	case strings.HasPrefix(line, "TRYAGAIN"):
		return Redirect{Kind: RedirectTryAgain}
	case strings.HasPrefix(line, "CLUSTERDOWN"):
		return Redirect{Kind: RedirectClusterDown}
	}
	return Redirect{}
}

// parseTarget parses "<slot> <host>:<port>".
func parseTarget(rest string, kind RedirectKind) Redirect {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Redirect{}
	}
	s, err := strconv.Atoi(fields[0])
	if err != nil || s < 0 || s >= slot.Count {
		return Redirect{}
	}
	addr := fields[1]
	if !strings.Contains(addr, ":") {
		return Redirect{}
	}
	return Redirect{Kind: kind, Slot: uint16(s), Addr: addr}
}
