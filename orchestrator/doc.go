// Package orchestrator accepts requests, throttles them per priority group
// and runs them through a handler under a global concurrency ceiling.
//
// Each request moves through Received, Dispatched and then exactly one of
// Succeeded or Failed. Every priority value has its own queue and its own
// fixed-window rate limit, so a burst at one priority does not consume the
// allowance of another. Admitted requests run through retry, then a per-call
// timeout. Only failures core.IsRetryable accepts are retried; validation
// errors and handler results such as a failed extraction end the request on
// the first attempt. Any final failure is converted into an error Result instead of
// being returned. Successes, errors and periodic statistics are delivered on
// separate channels and, when configured, to a Publisher.
package orchestrator
