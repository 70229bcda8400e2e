package pipeline

import (
	"context"
)

// Node is a single asynchronous transform stage.
// Implementations must be safe for concurrent use across different inputs.
type Node[In, Out any] interface {
	Process(ctx context.Context, in In) (Out, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Process calls f(ctx, in).
func (f NodeFunc[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

// Then composes two nodes. A failure in first skips second.
func Then[A, B, C any](first Node[A, B], second Node[B, C]) Node[A, C] {
	return NodeFunc[A, C](func(ctx context.Context, in A) (C, error) {
		mid, err := first.Process(ctx, in)
		if err != nil {
			var zero C
			return zero, err
		}
		return second.Process(ctx, mid)
	})
}

// Chain composes same-typed nodes in order, stopping at the first failure.
func Chain[T any](nodes ...Node[T, T]) Node[T, T] {
	return NodeFunc[T, T](func(ctx context.Context, in T) (T, error) {
		cur := in
		for _, n := range nodes {
			next, err := n.Process(ctx, cur)
			if err != nil {
				var zero T
				return zero, err
			}
			cur = next
		}
		return cur, nil
	})
}

// Outcome is the result of processing one input: a value or an error.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Collect drains ch and returns every outcome in arrival order.
func Collect[T any](ch <-chan Outcome[T]) []Outcome[T] {
	var outcomes []Outcome[T]
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Split separates successful values from errors.
func Split[T any](outcomes []Outcome[T]) ([]T, []error) {
	var values []T
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			continue
		}
		values = append(values, o.Value)
	}
	return values, errs
}
