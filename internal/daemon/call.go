package daemon

import (
	"context"

	"github.com/jneschisi/dart-frog/internal/protocol"
)

// Call is a request awaiting its response. It completes exactly once.
type Call struct {
	Request *protocol.Request

	done chan struct{}
	resp *protocol.Response
	err  error
}

func newCall(req *protocol.Request) *Call {
	return &Call{Request: req, done: make(chan struct{})}
}

// Done is closed once the call has completed.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx is done. A completed call
// always wins over a done ctx. A call abandoned by ctx stays pending in the
// session and may still complete later.
func (c *Call) Wait(ctx context.Context) (*protocol.Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	default:
	}

	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		select {
		case <-c.done:
			return c.resp, c.err
		default:
			return nil, ctx.Err()
		}
	}
}

// complete must be called at most once, by whoever removed the call from the
// pending table.
func (c *Call) complete(resp *protocol.Response, err error) {
	c.resp = resp
	c.err = err
	close(c.done)
}
