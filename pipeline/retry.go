// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
)

// Retry re-invokes node after delay when it fails, up to maxRetries extra
// attempts (1+maxRetries in total). When every attempt fails the returned
// error is a *core.UnrecoverableError wrapping the final attempt's error.
func Retry[In, Out any](node Node[In, Out], maxRetries int, delay time.Duration, clk clock.Clock) Node[In, Out] {
	return retry(node, maxRetries, fixed(delay), clk, nil)
}

// RetryIf is Retry limited to failures for which retryable reports true.
// Any other failure ends the loop at once as a *core.UnrecoverableError
// carrying the number of attempts made.
func RetryIf[In, Out any](node Node[In, Out], maxRetries int, delay time.Duration, clk clock.Clock, retryable func(error) bool) Node[In, Out] {
	return retry(node, maxRetries, fixed(delay), clk, retryable)
}

// RetryWithBackoff is Retry with exponential backoff:
// baseDelay * 2^(attempt-1) between attempts.
func RetryWithBackoff[In, Out any](node Node[In, Out], maxRetries int, baseDelay time.Duration, clk clock.Clock) Node[In, Out] {
	return retry(node, maxRetries, backoff(baseDelay), clk, nil)
}

// RetryWithBackoffIf is RetryWithBackoff gated by retryable, as in RetryIf.
func RetryWithBackoffIf[In, Out any](node Node[In, Out], maxRetries int, baseDelay time.Duration, clk clock.Clock, retryable func(error) bool) Node[In, Out] {
	return retry(node, maxRetries, backoff(baseDelay), clk, retryable)
}

func fixed(delay time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return delay }
}

func backoff(baseDelay time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		delay := baseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	}
}

// retry runs node up to 1+maxRetries times. A nil retryable retries every failure.
func retry[In, Out any](node Node[In, Out], maxRetries int, delayFor func(attempt int) time.Duration, clk clock.Clock, retryable func(error) bool) Node[In, Out] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	clk = clock.OrReal(clk)
	maxAttempts := maxRetries + 1

	return NodeFunc[In, Out](func(ctx context.Context, in In) (Out, error) {
		var zero Out
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			// Check context before attempting
			if err := ctx.Err(); err != nil {
				return zero, err
			}

			out, err := node.Process(ctx, in)
			if err == nil {
				if attempt > 1 {
					slog.Debug("operation succeeded after retry", "attempt", attempt)
				}
				return out, nil
			}
			lastErr = err

			if retryable != nil && !retryable(err) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return zero, ctxErr
				}
				slog.Debug("operation failed with non-retryable error", "attempt", attempt, "error", err)
				return zero, &core.UnrecoverableError{Attempts: attempt, Err: err}
			}

			// Don't sleep after the last attempt
			if attempt == maxAttempts {
				break
			}

			slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", err)

			delay := delayFor(attempt)
			if delay <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-clk.After(delay):
			}
		}

		return zero, &core.UnrecoverableError{Attempts: maxAttempts, Err: lastErr}
	})
}
