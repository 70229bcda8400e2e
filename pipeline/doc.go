// Package pipeline provides composable asynchronous processing stages.
//
// A Node transforms one input into one output or fails. Decorators wrap a
// Node with policy and return another Node:
//
//   - Retry, RetryWithBackoff: re-invoke on failure after a delay
//   - Timeout: fail with core.TimeoutError when an invocation runs too long
//   - Fallback, FallbackFunc: substitute a value instead of failing
//   - WithProgress: report Started/Completed/Failed around each invocation
//   - Then, Chain: compose stages, short-circuiting on failure
//
// Stream combinators drive a Node over a channel of inputs and yield exactly
// one Outcome per admitted input:
//
//   - Sequential: one item at a time, input order preserved
//   - Concurrent: at most N items in flight on an ants worker pool, unordered
//   - Buffered: items grouped in chunks flushed by size or time window
//
// The Builder composes stages into a Pipeline description. Nothing runs
// until Pipeline.Run is called, and every Run re-executes the description.
//
// All waiting (retry delays, timeouts, buffer windows) goes through a
// clock.Clock so tests can drive time with clock.Mock.
package pipeline
