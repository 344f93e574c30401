package command

import (
	"context"
	"sync"

	"github.com/thachlp/lettuce/resp"
)

// Completion is the promise a dispatch returns immediately.
//
// It resolves exactly once, to a reply or an error. Waiting is a
// separate, cancelable operation: abandoning a Wait does not release
// the command's position in its connection's in-flight queue — the
// reply still arrives and is discarded there, which is what keeps
// positional correlation intact.
type Completion struct {
	done  chan struct{}
	once  sync.Once
	reply *resp.Reply
	err   error
}

// NewCompletion creates an unresolved completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve completes with a reply. Later calls to Resolve or Fail are no-ops.
func (c *Completion) Resolve(reply *resp.Reply) {
	c.once.Do(func() {
		c.reply = reply
		close(c.done)
	})
}

// Fail completes with an error. Later calls to Resolve or Fail are no-ops.
func (c *Completion) Fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done returns a channel closed when the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the completion has resolved.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Reply returns the reply after resolution; nil before or on failure.
func (c *Completion) Reply() *resp.Reply {
	select {
	case <-c.done:
		return c.reply
	default:
		return nil
	}
}

// Err returns the failure after resolution; nil before or on success.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks for resolution or for ctx. On ctx expiry the wait is
// abandoned but the command itself is not recalled from the wire.
func (c *Completion) Wait(ctx context.Context) (*resp.Reply, error) {
	select {
	case <-c.done:
		return c.reply, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
