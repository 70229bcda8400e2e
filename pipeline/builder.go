package pipeline

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/clock"
)

// Source produces the items a pipeline run starts from. It is invoked once
// per Run and must stop producing when ctx is done.
type Source[T any] func(ctx context.Context) <-chan T

// FromSlice is a Source replaying items on every run.
func FromSlice[T any](items ...T) Source[T] {
	return func(ctx context.Context) <-chan T {
		ch := make(chan T)
		go func() {
			defer close(ch)
			for _, item := range items {
				if !emit(ctx, ch, item) {
					return
				}
			}
		}()
		return ch
	}
}

// FromChannel is a Source over an existing channel. The channel can only be
// consumed once, so pipelines built on it should only be run once.
func FromChannel[T any](ch <-chan T) Source[T] {
	return func(context.Context) <-chan T {
		return ch
	}
}

// FromFunc is a Source driven by fn, which calls emit for each item and stops
// when emit returns false.
func FromFunc[T any](fn func(ctx context.Context, emit func(T) bool) error) Source[T] {
	return func(ctx context.Context) <-chan T {
		ch := make(chan T)
		go func() {
			defer close(ch)
			_ = fn(ctx, func(item T) bool {
				return emit(ctx, ch, item)
			})
		}()
		return ch
	}
}

// StageOption configures how a stage runs its node.
type StageOption func(*stageConfig)

type stageConfig struct {
	concurrency int
	bufferSize  int
	window      time.Duration
	clock       clock.Clock
}

// WithConcurrency runs the stage with up to n invocations in flight.
func WithConcurrency(n int) StageOption {
	return func(c *stageConfig) {
		c.concurrency = n
	}
}

// WithBuffer runs the stage in chunks of size, flushed after window.
func WithBuffer(size int, window time.Duration) StageOption {
	return func(c *stageConfig) {
		c.bufferSize = size
		c.window = window
	}
}

// WithClock sets the clock used for buffer windows.
func WithClock(clk clock.Clock) StageOption {
	return func(c *stageConfig) {
		c.clock = clk
	}
}

// Stage is an unexecuted pipeline description whose items are of type T.
type Stage[T any] struct {
	run func(ctx context.Context) <-chan Outcome[T]
}

// From starts a pipeline description from src.
func From[T any](src Source[T]) *Stage[T] {
	return &Stage[T]{
		run: func(ctx context.Context) <-chan Outcome[T] {
			items := src(ctx)
			out := make(chan Outcome[T])
			go func() {
				defer close(out)
				for {
					item, ok := receive(ctx, items)
					if !ok {
						return
					}
					if !emit(ctx, out, Outcome[T]{Value: item}) {
						return
					}
				}
			}()
			return out
		},
	}
}

// Through appends node to the description, changing the item type to Out.
// Items that already failed upstream pass through without invoking node.
func Through[In, Out any](s *Stage[In], node Node[In, Out], opts ...StageOption) *Stage[Out] {
	cfg := stageConfig{concurrency: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	guarded := NodeFunc[Outcome[In], Out](func(ctx context.Context, o Outcome[In]) (Out, error) {
		if o.Err != nil {
			var zero Out
			return zero, o.Err
		}
		return node.Process(ctx, o.Value)
	})

	return &Stage[Out]{
		run: func(ctx context.Context) <-chan Outcome[Out] {
			upstream := s.run(ctx)
			switch {
			case cfg.bufferSize > 0:
				return Buffered(ctx, guarded, upstream, cfg.bufferSize, cfg.window, cfg.clock)
			case cfg.concurrency > 1:
				return Concurrent(ctx, guarded, upstream, cfg.concurrency)
			default:
				return Sequential(ctx, guarded, upstream)
			}
		},
	}
}

// Then appends a node that keeps the item type.
func (s *Stage[T]) Then(node Node[T, T], opts ...StageOption) *Stage[T] {
	return Through(s, node, opts...)
}

// Build finalizes the description. Nothing has executed yet.
func (s *Stage[T]) Build() *Pipeline[T] {
	return &Pipeline[T]{run: s.run}
}

// Pipeline is a composed, reusable, not yet executed chain of stages.
type Pipeline[T any] struct {
	run func(ctx context.Context) <-chan Outcome[T]
}

// Run executes the pipeline and returns its outcomes. Every call starts a
// fresh execution from the source.
func (p *Pipeline[T]) Run(ctx context.Context) <-chan Outcome[T] {
	return p.run(ctx)
}
