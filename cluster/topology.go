// Package cluster holds the client's picture of the deployment —
// which node owns which hash slot — and the machinery that keeps it
// honest: discovery parsing, the redirect-following router and the
// background refresher.
package cluster

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/slot"
)

// Role distinguishes primaries from replicas.
type Role int8

const (
	RolePrimary Role = iota
	RoleReplica
)

func (r Role) String() string {
	if r == RoleReplica {
		return "replica"
	}
	return "primary"
}

// Node is one cluster member. Nodes are owned by their Topology
// snapshot and never mutated after construction; a refresh replaces
// them wholesale.
type Node struct {
	ID   string
	Addr string // host:port
	Role Role
}

// Topology is one immutable snapshot of slot ownership. Multiple
// versions may be alive at once: commands already routed against an
// old snapshot finish against it while new dispatches see the new
// one.
type Topology struct {
	version uint64
	slots   [slot.Count]*Node
	nodes   map[string]*Node // by addr, primaries and replicas
}

// Version returns the snapshot's monotonic version.
func (t *Topology) Version() uint64 {
	return t.version
}

// Lookup resolves the owning node of a slot.
func (t *Topology) Lookup(s uint16) (*Node, error) {
	if int(s) >= slot.Count {
		return nil, command.ErrSlotUnassigned.WithDetails("slot " + strconv.Itoa(int(s)) + " out of range")
	}
	n := t.slots[s]
	if n == nil {
		return nil, command.ErrSlotUnassigned.WithDetails("slot " + strconv.Itoa(int(s)))
	}
	return n, nil
}

// Nodes returns all known nodes, sorted by address for stable output.
func (t *Topology) Nodes() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Primaries returns all primary nodes, sorted by address.
func (t *Topology) Primaries() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Role == RolePrimary {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// SlotRanges summarizes ownership as contiguous [from,to]->addr runs,
// in slot order. Diagnostic output, not a routing structure.
func (t *Topology) SlotRanges() []SlotRange {
	var out []SlotRange
	for s := 0; s < slot.Count; s++ {
		n := t.slots[s]
		if n == nil {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Addr == n.Addr && int(out[len(out)-1].To) == s-1 {
			out[len(out)-1].To = uint16(s)
			continue
		}
		out = append(out, SlotRange{From: uint16(s), To: uint16(s), Addr: n.Addr})
	}
	return out
}

// SlotRange is one contiguous run of slots owned by a node.
type SlotRange struct {
	From, To uint16
	Addr     string
}

// withSlotOwner returns a copy of the snapshot with one slot's owner
// patched, as learned from a MOVED reply. The version bumps so the
// change is observable.
func (t *Topology) withSlotOwner(s uint16, addr string) *Topology {
	next := &Topology{
		version: t.version + 1,
		slots:   t.slots,
		nodes:   make(map[string]*Node, len(t.nodes)+1),
	}
	for k, v := range t.nodes {
		next.nodes[k] = v
	}
	owner, ok := next.nodes[addr]
	if !ok {
		// MOVED can point at a node discovery has not seen yet.
		owner = &Node{Addr: addr, Role: RolePrimary}
		next.nodes[addr] = owner
	}
	next.slots[s] = owner
	return next
}

// Single builds the degenerate topology of an unsharded deployment:
// one node owning every slot. Redirects still work if something in
// front of the node emits them.
func Single(addr string) *Topology {
	n := &Node{Addr: addr, Role: RolePrimary}
	t := &Topology{
		version: 1,
		nodes:   map[string]*Node{addr: n},
	}
	for s := range t.slots {
		t.slots[s] = n
	}
	return t
}

// Holder is the atomically swappable reference to the active
// snapshot, shared by router and refresher. Reads never lock;
// replacement is a pointer swap, so a lookup sees either the whole
// old table or the whole new one, never a mix.
type Holder struct {
	p atomic.Pointer[Topology]
}

// NewHolder creates a holder, optionally seeded with a snapshot.
func NewHolder(t *Topology) *Holder {
	h := &Holder{}
	if t != nil {
		h.p.Store(t)
	}
	return h
}

// Load returns the active snapshot, or nil before bootstrap.
func (h *Holder) Load() *Topology {
	return h.p.Load()
}

// Store replaces the active snapshot.
func (h *Holder) Store(t *Topology) {
	h.p.Store(t)
}

// PatchSlot applies a MOVED-learned ownership change to the active
// snapshot. Lost races with a concurrent full refresh are fine: the
// refresh result is newer information.
func (h *Holder) PatchSlot(s uint16, addr string) {
	for {
		cur := h.p.Load()
		if cur == nil {
			return
		}
		if owner := cur.slots[s]; owner != nil && owner.Addr == addr {
			return
		}
		if h.p.CompareAndSwap(cur, cur.withSlotOwner(s, addr)) {
			return
		}
	}
}
