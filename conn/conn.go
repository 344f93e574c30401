// Package conn implements the ordered command pipeline over one
// physical connection, and the per-node pool that multiplexes many
// callers over few connections.
//
// Correlation is purely positional: the server answers commands in
// the order they were written, one reply per command, so each
// connection keeps a FIFO in-flight queue and matches reply[i] to
// command[i]. Nothing else may touch that queue.
package conn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
	"github.com/thachlp/lettuce/internal/telemetry/metric"
	"github.com/thachlp/lettuce/resp"
)

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config carries the dependencies a connection needs.
type Config struct {
	DialTimeout time.Duration
	Log         logger.Logger
	Metrics     *metric.Metrics
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 5 * time.Second
	}
	if out.Log == nil {
		out.Log = logger.Default()
	}
	if out.Metrics == nil {
		out.Metrics = metric.Nop()
	}
	return out
}

type entry struct {
	cmd *command.Command
	// discard marks internal primer frames (ASKING) whose replies are
	// consumed without being delivered to anyone.
	discard bool
}

// Conn is one physical connection with an ordered in-flight queue.
type Conn struct {
	addr    string
	nc      net.Conn
	w       *resp.Writer
	r       *resp.Reader
	log     logger.Logger
	metrics *metric.Metrics

	// mu serializes writers and guards inflight. Writes happen under
	// mu so the append order and the wire order are the same order.
	mu       sync.Mutex
	inflight []*entry

	state     atomic.Int32
	closeOnce sync.Once
}

// Dial opens a connection to addr and starts its reader.
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	d := net.Dialer{Timeout: cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, command.ErrConnectionLost.WithDetails("dial " + addr).WithCause(err)
	}

	c := &Conn{
		addr:    addr,
		nc:      nc,
		w:       resp.NewWriter(nc),
		r:       resp.NewReader(nc),
		log:     cfg.Log.With("conn_addr", addr),
		metrics: cfg.Metrics,
	}
	c.state.Store(int32(StateReady))
	c.metrics.ConnsOpen.Inc()
	c.log.Debug("connection established")

	go c.readLoop()
	return c, nil
}

// Addr returns the remote address.
func (c *Conn) Addr() string {
	return c.addr
}

// State returns the lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Pending returns the number of commands awaiting replies.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Send writes the command to the wire and queues it for reply
// matching. Submission is complete when Send returns; the caller
// awaits the command's completion separately.
//
// On a write error the connection is poisoned: the command was
// possibly half-written, so the stream cannot be trusted for anything
// further. Send returns the error and the reader tears the connection
// down; the command's completion is failed there, not here.
func (c *Conn) Send(cmd *command.Command) error {
	return c.send(cmd, false)
}

// SendAsking sends an ASKING primer immediately followed by the
// command, in one flush. The primer's +OK is read and discarded by
// the reader without consuming the command's queue position.
func (c *Conn) SendAsking(cmd *command.Command) error {
	return c.send(cmd, true)
}

func (c *Conn) send(cmd *command.Command, asking bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateReady {
		return command.ErrConnectionLost.WithDetails("connection is " + c.State().String())
	}

	if asking {
		if err := c.w.WriteCommand("ASKING", nil); err != nil {
			return c.poisonLocked(err)
		}
		c.inflight = append(c.inflight, &entry{discard: true})
	}

	if err := c.w.WriteCommand(cmd.Name, cmd.Args); err != nil {
		return c.poisonLocked(err)
	}
	c.inflight = append(c.inflight, &entry{cmd: cmd})

	if err := c.w.Flush(); err != nil {
		return c.poisonLocked(err)
	}

	c.metrics.InFlight.Inc()
	return nil
}

// poisonLocked closes the transport after a write failure. Queued
// entries stay put; the read loop observes the closed socket and
// fails them all in order.
func (c *Conn) poisonLocked(err error) error {
	c.state.Store(int32(StateClosed))
	_ = c.nc.Close()
	return command.ErrConnectionLost.WithDetails("write " + c.addr).WithCause(err)
}

// Close drains the connection: no new sends are accepted, replies for
// queued commands are still delivered, then the transport closes. A
// connection with an empty queue closes immediately.
func (c *Conn) Close() {
	c.mu.Lock()
	if State(c.state.Load()) == StateReady {
		c.state.Store(int32(StateDraining))
	}
	empty := len(c.inflight) == 0
	c.mu.Unlock()

	if empty {
		c.teardown(nil)
	}
}

func (c *Conn) readLoop() {
	for {
		reply, err := c.r.ReadReply()
		if err != nil {
			c.teardown(err)
			return
		}

		// RESP3 out-of-band push frames (invalidation, pubsub) do not
		// consume a queue position.
		if reply.Kind == resp.KindPush {
			continue
		}

		c.mu.Lock()
		if len(c.inflight) == 0 {
			c.mu.Unlock()
			// A reply with nothing in flight means the framing is
			// desynced; positional matching cannot recover from that.
			c.teardown(fmt.Errorf("%w: unsolicited reply", resp.ErrProtocol))
			return
		}
		e := c.inflight[0]
		c.inflight = c.inflight[1:]
		drained := State(c.state.Load()) == StateDraining && len(c.inflight) == 0
		c.mu.Unlock()

		if !e.discard {
			c.metrics.InFlight.Dec()
			e.cmd.Completion().Resolve(reply)
		}

		if drained {
			c.teardown(nil)
			return
		}
	}
}

// teardown closes the transport and fails every queued command with
// ConnectionLost, exactly once. Commands on other connections are
// untouched.
func (c *Conn) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		_ = c.nc.Close()

		c.mu.Lock()
		pending := c.inflight
		c.inflight = nil
		c.mu.Unlock()

		failure := command.ErrConnectionLost.WithDetails("conn to " + c.addr)
		if cause != nil {
			failure = failure.WithCause(cause)
		}
		for _, e := range pending {
			if e.discard {
				continue
			}
			c.metrics.InFlight.Dec()
			e.cmd.Completion().Fail(failure)
		}

		c.metrics.ConnsOpen.Dec()
		if cause != nil {
			c.log.Warn("connection lost", "error", cause, "failed_inflight", len(pending))
		} else {
			c.log.Debug("connection closed")
		}
	})
}
