package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/clock"
)

// Sequential processes inputs one at a time and emits outcomes in input order.
//
// Cancelling ctx stops admission of new inputs. Outcomes not yet delivered
// when ctx is cancelled are discarded, and the output channel is closed.
func Sequential[In, Out any](ctx context.Context, node Node[In, Out], in <-chan In) <-chan Outcome[Out] {
	out := make(chan Outcome[Out])
	go func() {
		defer close(out)
		for {
			item, ok := receive(ctx, in)
			if !ok {
				return
			}
			v, err := node.Process(ctx, item)
			if !emit(ctx, out, Outcome[Out]{Value: v, Err: err}) {
				return
			}
		}
	}()
	return out
}

// Concurrent processes inputs on a dedicated worker pool with at most
// maxConcurrency invocations in flight. Outcome order is not guaranteed.
// Arrivals beyond the ceiling wait for a free worker.
func Concurrent[In, Out any](ctx context.Context, node Node[In, Out], in <-chan In, maxConcurrency int) <-chan Outcome[Out] {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	pool, err := ants.NewPool(maxConcurrency)
	if err != nil {
		return failAll[In, Out](ctx, in, fmt.Errorf("create worker pool: %w", err))
	}
	return runOnPool(ctx, node, in, pool, true)
}

// ConcurrentOn is Concurrent on a caller-owned pool, so several streams can
// share one global concurrency ceiling. The pool is not released.
func ConcurrentOn[In, Out any](ctx context.Context, node Node[In, Out], in <-chan In, pool *ants.Pool) <-chan Outcome[Out] {
	return runOnPool(ctx, node, in, pool, false)
}

func runOnPool[In, Out any](ctx context.Context, node Node[In, Out], in <-chan In, pool *ants.Pool, release bool) <-chan Outcome[Out] {
	out := make(chan Outcome[Out])
	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			if release {
				pool.Release()
			}
			close(out)
		}()

		for {
			item, ok := receive(ctx, in)
			if !ok {
				return
			}
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				v, err := node.Process(ctx, item)
				emit(ctx, out, Outcome[Out]{Value: v, Err: err})
			})
			if err != nil {
				wg.Done()
				if !emit(ctx, out, Outcome[Out]{Err: fmt.Errorf("submit to worker pool: %w", err)}) {
					return
				}
			}
		}
	}()
	return out
}

// Buffered groups inputs into chunks of at most size items and processes each
// chunk in order. With window > 0 a partial chunk is flushed once window has
// elapsed since its first item arrived.
func Buffered[In, Out any](ctx context.Context, node Node[In, Out], in <-chan In, size int, window time.Duration, clk clock.Clock) <-chan Outcome[Out] {
	if size < 1 {
		size = 1
	}
	clk = clock.OrReal(clk)

	out := make(chan Outcome[Out])
	go func() {
		defer close(out)

		chunk := make([]In, 0, size)
		var deadline <-chan time.Time

		flush := func() bool {
			deadline = nil
			for _, item := range chunk {
				v, err := node.Process(ctx, item)
				if !emit(ctx, out, Outcome[Out]{Value: v, Err: err}) {
					return false
				}
			}
			chunk = chunk[:0]
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					flush()
					return
				}
				chunk = append(chunk, item)
				if len(chunk) == 1 && window > 0 {
					deadline = clk.After(window)
				}
				if len(chunk) >= size && !flush() {
					return
				}
			case <-deadline:
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}

// failAll emits err once for every input so no item is silently dropped.
func failAll[In, Out any](ctx context.Context, in <-chan In, err error) <-chan Outcome[Out] {
	out := make(chan Outcome[Out])
	go func() {
		defer close(out)
		for {
			if _, ok := receive(ctx, in); !ok {
				return
			}
			if !emit(ctx, out, Outcome[Out]{Err: err}) {
				return
			}
		}
	}()
	return out
}

// receive reads the next input unless ctx is done or in is closed.
func receive[T any](ctx context.Context, in <-chan T) (T, bool) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, false
	case item, ok := <-in:
		return item, ok
	}
}

// emit delivers o unless ctx is cancelled first.
func emit[T any](ctx context.Context, out chan<- T, o T) bool {
	select {
	case out <- o:
		return true
	case <-ctx.Done():
		return false
	}
}
