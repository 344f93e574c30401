package command

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/thachlp/lettuce/slot"
)

// Command is one logical operation against the deployment.
//
// The command-builder surface above the engine produces the name, the
// key set and the already-encoded argument bytes; the engine only
// routes and frames them. A Command is consumed by the engine exactly
// once and retired when its Completion resolves.
type Command struct {
	// ID identifies the command in logs and metrics. It never appears
	// on the wire: reply correlation is positional, not by id.
	ID string

	// Name is the command name, e.g. "GET" or "CLUSTER".
	Name string

	// Args are the encoded argument bytes, in order, keys included.
	Args [][]byte

	// Keys are the routing keys. Empty for keyless commands, which are
	// routed to Node (if set) or to an arbitrary primary.
	Keys [][]byte

	// Node optionally pins the command to an explicitly addressed node
	// (host:port), bypassing slot resolution.
	Node string

	completion *Completion
}

var ulidEntropy = struct {
	sync.Mutex
	r *rand.Rand
}{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

func newID() string {
	ulidEntropy.Lock()
	defer ulidEntropy.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy.r).String()
}

// New creates a command with a fresh completion handle.
func New(name string, keys [][]byte, args ...[]byte) *Command {
	return &Command{
		ID:         newID(),
		Name:       name,
		Args:       args,
		Keys:       keys,
		completion: NewCompletion(),
	}
}

// Completion returns the handle the caller awaits.
func (c *Command) Completion() *Completion {
	return c.completion
}

// Slot returns the hash slot of the first routing key. ok is false for
// keyless commands.
func (c *Command) Slot() (uint16, bool) {
	if len(c.Keys) == 0 {
		return 0, false
	}
	return slot.Of(c.Keys[0]), true
}

// Sharded reports whether the command participates in slot routing.
func (c *Command) Sharded() bool {
	return len(c.Keys) > 0
}
