package pipeline

import "context"

// Fallback returns defaultValue instead of any error from node.
func Fallback[In, Out any](node Node[In, Out], defaultValue Out) Node[In, Out] {
	return FallbackFunc(node, func(context.Context, In, error) Out {
		return defaultValue
	})
}

// FallbackFunc replaces any error from node with the value substitute returns.
func FallbackFunc[In, Out any](node Node[In, Out], substitute func(ctx context.Context, in In, err error) Out) Node[In, Out] {
	return NodeFunc[In, Out](func(ctx context.Context, in In) (Out, error) {
		out, err := node.Process(ctx, in)
		if err != nil {
			return substitute(ctx, in, err), nil
		}
		return out, nil
	})
}
