package pipeline

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
)

// Timeout fails an invocation with *core.TimeoutError when node does not
// return within d. The inner call's context is cancelled at that point, but
// whether the call actually stops is up to the node.
func Timeout[In, Out any](node Node[In, Out], d time.Duration, clk clock.Clock) Node[In, Out] {
	clk = clock.OrReal(clk)

	type result struct {
		out Out
		err error
	}

	return NodeFunc[In, Out](func(ctx context.Context, in In) (Out, error) {
		var zero Out
		if d <= 0 {
			return node.Process(ctx, in)
		}

		callCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan result, 1)
		go func() {
			out, err := node.Process(callCtx, in)
			done <- result{out: out, err: err}
		}()

		select {
		case r := <-done:
			return r.out, r.err
		case <-clk.After(d):
			return zero, &core.TimeoutError{After: d}
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	})
}
