package pipeline

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// ProgressSink receives progress events. It is called synchronously from the
// processing goroutine and must not block for long.
type ProgressSink[T any] func(core.Progress[T])

// WithProgress reports Started before each invocation and Completed or
// Failed after it. The node's result is returned unchanged.
func WithProgress[In, Out any](node Node[In, Out], sink ProgressSink[In]) Node[In, Out] {
	return NodeFunc[In, Out](func(ctx context.Context, in In) (Out, error) {
		sink(core.Progress[In]{Status: core.ProgressStarted, Item: in})
		out, err := node.Process(ctx, in)
		if err != nil {
			sink(core.Progress[In]{Status: core.ProgressFailed, Item: in, Err: err})
			return out, err
		}
		sink(core.Progress[In]{Status: core.ProgressCompleted, Item: in})
		return out, nil
	})
}

// ChannelSink returns a sink that forwards events to ch, blocking when ch is full.
func ChannelSink[T any](ch chan<- core.Progress[T]) ProgressSink[T] {
	return func(p core.Progress[T]) {
		ch <- p
	}
}
