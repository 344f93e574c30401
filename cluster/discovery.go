package cluster

import (
	"fmt"
	"net"
	"strconv"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/resp"
	"github.com/thachlp/lettuce/slot"
)

// ParseSlots builds a Topology from a CLUSTER SLOTS reply.
//
// The reply is an array of range entries: start slot, end slot, the
// owning primary as [host, port, id?], then zero or more replicas in
// the same shape. The table is validated strictly: a range that
// overlaps another, a slot left unowned, or a malformed node entry
// rejects the whole reply with TopologyInconsistent — a half-believed
// topology misroutes quietly, which is worse than keeping the
// previous one.
func ParseSlots(reply *resp.Reply, version uint64) (*Topology, error) {
	if reply == nil || reply.Kind != resp.KindArray || reply.Null {
		return nil, command.ErrTopologyInconsistent.WithDetails("discovery reply is not an array")
	}
	if len(reply.Elems) == 0 {
		return nil, command.ErrTopologyInconsistent.WithDetails("discovery reply is empty")
	}

	t := &Topology{
		version: version,
		nodes:   make(map[string]*Node),
	}

	for i, entry := range reply.Elems {
		if entry.Kind != resp.KindArray || len(entry.Elems) < 3 {
			return nil, inconsistent("entry %d is not a [start end node...] array", i)
		}
		start, ok := intElem(entry.Elems[0])
		if !ok {
			return nil, inconsistent("entry %d has non-integer range start", i)
		}
		end, ok := intElem(entry.Elems[1])
		if !ok {
			return nil, inconsistent("entry %d has non-integer range end", i)
		}
		if start < 0 || end >= slot.Count || start > end {
			return nil, inconsistent("entry %d has invalid range %d-%d", i, start, end)
		}

		primary, err := parseNodeEntry(entry.Elems[2], RolePrimary, i)
		if err != nil {
			return nil, err
		}
		primary = t.intern(primary)

		for _, rep := range entry.Elems[3:] {
			replica, err := parseNodeEntry(rep, RoleReplica, i)
			if err != nil {
				return nil, err
			}
			t.intern(replica)
		}

		for s := start; s <= end; s++ {
			if t.slots[s] != nil {
				return nil, inconsistent("slot %d claimed by both %s and %s", s, t.slots[s].Addr, primary.Addr)
			}
			t.slots[s] = primary
		}
	}

	for s := 0; s < slot.Count; s++ {
		if t.slots[s] == nil {
			return nil, inconsistent("slot %d has no owner", s)
		}
	}

	return t, nil
}

// intern deduplicates nodes by address so every slot entry for one
// node shares a pointer.
func (t *Topology) intern(n *Node) *Node {
	if existing, ok := t.nodes[n.Addr]; ok {
		if existing.ID == "" {
			existing.ID = n.ID
		}
		return existing
	}
	t.nodes[n.Addr] = n
	return n
}

func parseNodeEntry(e *resp.Reply, role Role, entry int) (*Node, error) {
	if e.Kind != resp.KindArray || len(e.Elems) < 2 {
		return nil, inconsistent("entry %d has malformed node element", entry)
	}
	host := e.Elems[0].Text()
	if host == "" {
		return nil, inconsistent("entry %d has empty node host", entry)
	}
	port, ok := intElem(e.Elems[1])
	if !ok || port <= 0 || port > 65535 {
		return nil, inconsistent("entry %d has invalid node port", entry)
	}

	n := &Node{
		Addr: net.JoinHostPort(host, strconv.Itoa(port)),
		Role: role,
	}
	if len(e.Elems) >= 3 {
		n.ID = e.Elems[2].Text()
	}
	return n, nil
}

func intElem(e *resp.Reply) (int, bool) {
	switch e.Kind {
	case resp.KindInteger:
		return int(e.Int), true
	case resp.KindBulkString:
		// Some proxies answer ranges as bulk strings.
		n, err := strconv.Atoi(string(e.Bulk))
		return n, err == nil
	}
	return 0, false
}

func inconsistent(format string, args ...any) error {
	return command.ErrTopologyInconsistent.WithDetails(fmt.Sprintf(format, args...))
}
