package cluster

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
	"github.com/thachlp/lettuce/internal/telemetry/metric"
)

// Sender hands a command to the connection pool of a node. Implemented
// by the client's pool registry.
type Sender interface {
	Send(ctx context.Context, addr string, cmd *command.Command) error
	SendAsking(ctx context.Context, addr string, cmd *command.Command) error
}

// RouterConfig tunes the redirection state machine.
type RouterConfig struct {
	// MaxAttempts is the per-command budget of sends, shared by MOVED,
	// ASK, TRYAGAIN and connection-loss retries. Exhausting it fails
	// the command with TooManyRedirections.
	MaxAttempts int

	// TryAgainBackoff is the initial delay before retrying after a
	// TRYAGAIN reply; subsequent delays grow exponentially.
	TryAgainBackoff time.Duration

	Log     logger.Logger
	Metrics *metric.Metrics
}

func (c *RouterConfig) withDefaults() RouterConfig {
	out := *c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 16
	}
	if out.TryAgainBackoff <= 0 {
		out.TryAgainBackoff = 20 * time.Millisecond
	}
	if out.Log == nil {
		out.Log = logger.Default()
	}
	if out.Metrics == nil {
		out.Metrics = metric.Nop()
	}
	return out
}

// Router resolves a command's target node and follows the server's
// redirection protocol until the command completes or its attempt
// budget runs out.
type Router struct {
	holder *Holder
	sender Sender
	// stale is poked when a MOVED reply shows the topology is behind;
	// the refresher throttles and performs the actual rebuild.
	stale func()
	cfg   RouterConfig
}

// NewRouter creates a router against the given topology holder and
// pool registry. stale may be nil.
func NewRouter(holder *Holder, sender Sender, stale func(), cfg RouterConfig) *Router {
	if stale == nil {
		stale = func() {}
	}
	return &Router{
		holder: holder,
		sender: sender,
		stale:  stale,
		cfg:    cfg.withDefaults(),
	}
}

// Dispatch submits the command and returns its completion handle
// immediately. The redirection protocol runs in the background; the
// handle resolves exactly once with the final reply or failure.
func (r *Router) Dispatch(ctx context.Context, cmd *command.Command) *command.Completion {
	outer := cmd.Completion()
	go r.drive(ctx, cmd, outer)
	return outer
}

func (r *Router) drive(ctx context.Context, cmd *command.Command, outer *command.Completion) {
	start := time.Now()
	log := r.cfg.Log.With("cmd_id", cmd.ID, "cmd", cmd.Name)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.TryAgainBackoff
	bo.RandomizationFactor = 0.25
	bo.MaxInterval = time.Second
	bo.Reset()

	var (
		override   string // target forced by a redirect
		asking     bool   // next send needs the ASKING primer
		redirected bool
	)

	finish := func(status string) {
		r.cfg.Metrics.CommandsTotal.WithLabelValues(status).Inc()
		r.cfg.Metrics.CommandSeconds.Observe(time.Since(start).Seconds())
	}

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		addr, err := r.target(cmd, override)
		if err != nil {
			outer.Fail(err)
			finish("error")
			return
		}

		// Each attempt gets its own completion so a redirect reply is
		// consumed here instead of leaking to the caller.
		att := attemptOf(cmd)
		if asking {
			err = r.sender.SendAsking(ctx, addr, att)
		} else {
			err = r.sender.Send(ctx, addr, att)
		}
		if err != nil {
			if errors.Is(err, command.ErrConnectionLost) {
				// The node (or our connection to it) went away between
				// topology resolution and the send; re-resolve and retry.
				log.Debug("send failed, retrying", "addr", addr, "error", err)
				override, asking = "", false
				if !sleep(ctx, bo.NextBackOff()) {
					outer.Fail(ctx.Err())
					finish("error")
					return
				}
				continue
			}
			outer.Fail(err)
			finish("error")
			return
		}

		reply, err := att.Completion().Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				outer.Fail(ctx.Err())
				finish("error")
				return
			}
			if errors.Is(err, command.ErrConnectionLost) {
				log.Debug("connection lost awaiting reply, retrying", "addr", addr)
				override, asking = "", false
				continue
			}
			outer.Fail(err)
			finish("error")
			return
		}

		if reply.IsError() {
			rd := ParseRedirect(reply.ErrorLine())
			switch rd.Kind {
			case RedirectMoved:
				// MOVED is durable: patch ownership now so later
				// dispatches to this slot go to the right node, and let
				// the refresher rebuild the full picture.
				r.cfg.Metrics.RedirectsTotal.WithLabelValues("moved").Inc()
				log.Debug("moved", "slot", rd.Slot, "to", rd.Addr)
				r.holder.PatchSlot(rd.Slot, rd.Addr)
				r.stale()
				override, asking, redirected = rd.Addr, false, true
				continue

			case RedirectAsk:
				// ASK is transient: follow it with the primer, touch
				// nothing in the topology.
				r.cfg.Metrics.RedirectsTotal.WithLabelValues("ask").Inc()
				log.Debug("ask", "slot", rd.Slot, "to", rd.Addr)
				override, asking, redirected = rd.Addr, true, true
				continue

			case RedirectTryAgain:
				r.cfg.Metrics.RedirectsTotal.WithLabelValues("tryagain").Inc()
				if !sleep(ctx, bo.NextBackOff()) {
					outer.Fail(ctx.Err())
					finish("error")
					return
				}
				override, asking, redirected = addr, false, true
				continue

			case RedirectClusterDown:
				r.cfg.Metrics.RedirectsTotal.WithLabelValues("clusterdown").Inc()
				outer.Fail(command.ErrClusterUnavailable.WithDetails(reply.ErrorLine()))
				finish("error")
				return
			}
			// Any other error reply belongs to the caller.
		}

		outer.Resolve(reply)
		if redirected {
			finish("redirected_ok")
		} else {
			finish("ok")
		}
		return
	}

	outer.Fail(command.ErrTooManyRedirections.WithDetails(
		"command " + cmd.Name + " after " + strconv.Itoa(r.cfg.MaxAttempts) + " attempts"))
	finish("error")
}

// target picks the node address for the next attempt.
func (r *Router) target(cmd *command.Command, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if cmd.Node != "" {
		return cmd.Node, nil
	}

	topo := r.holder.Load()
	if topo == nil {
		return "", command.ErrSlotUnassigned.WithDetails("no topology discovered yet")
	}

	if s, ok := cmd.Slot(); ok {
		n, err := topo.Lookup(s)
		if err != nil {
			return "", err
		}
		return n.Addr, nil
	}

	// Keyless commands go to an arbitrary primary.
	primaries := topo.Primaries()
	if len(primaries) == 0 {
		return "", command.ErrSlotUnassigned.WithDetails("topology has no primaries")
	}
	return primaries[rand.Intn(len(primaries))].Addr, nil
}

// attemptOf clones the command with a fresh completion, keeping the
// id so log lines of all attempts correlate.
func attemptOf(cmd *command.Command) *command.Command {
	att := command.New(cmd.Name, cmd.Keys, cmd.Args...)
	att.ID = cmd.ID
	att.Node = cmd.Node
	return att
}

// sleep waits d or until ctx is done; false means ctx won.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
