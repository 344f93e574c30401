package conn

import (
	"context"
	"sync"

	"github.com/thachlp/lettuce/command"
)

// Pool multiplexes commands for one node over up to size connections.
//
// Connections are dialed lazily. A broken connection is dropped from
// the pool on the next acquire and replaced on demand; its in-flight
// commands were already failed by its own teardown.
type Pool struct {
	addr string
	size int
	cfg  Config

	mu     sync.Mutex
	conns  []*Conn
	closed bool
}

// NewPool creates a pool for addr with the given maximum size.
func NewPool(addr string, size int, cfg Config) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		addr: addr,
		size: size,
		cfg:  cfg.withDefaults(),
	}
}

// Addr returns the node address this pool serves.
func (p *Pool) Addr() string {
	return p.addr
}

// Send dispatches the command on the least-loaded connection.
func (p *Pool) Send(ctx context.Context, cmd *command.Command) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	return c.Send(cmd)
}

// SendAsking dispatches the command preceded by an ASKING primer on
// the same connection.
func (p *Pool) SendAsking(ctx context.Context, cmd *command.Command) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	return c.SendAsking(cmd)
}

// acquire returns a ready connection, dialing a fresh one if the pool
// is below size, otherwise picking the one with the fewest commands
// in flight.
func (p *Pool) acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, command.ErrClientClosed
	}

	// Drop connections that died since the last acquire.
	alive := p.conns[:0]
	for _, c := range p.conns {
		if c.State() == StateReady {
			alive = append(alive, c)
		}
	}
	p.conns = alive

	if len(p.conns) < p.size {
		c, err := Dial(ctx, p.addr, p.cfg)
		if err != nil {
			if len(p.conns) == 0 {
				return nil, err
			}
			// A dial failure with survivors is not fatal; fall through
			// to the existing connections.
		} else {
			p.conns = append(p.conns, c)
			return c, nil
		}
	}

	best := p.conns[0]
	bestPending := best.Pending()
	for _, c := range p.conns[1:] {
		if pending := c.Pending(); pending < bestPending {
			best, bestPending = c, pending
		}
	}
	return best, nil
}

// Len returns the number of live pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.conns {
		if c.State() == StateReady {
			n++
		}
	}
	return n
}

// Close drains all pooled connections. The pool rejects sends
// afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.closed = true
	p.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
