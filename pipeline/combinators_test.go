package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func flaky(failures int, calls *atomic.Int32) Node[int, int] {
	return NodeFunc[int, int](func(ctx context.Context, in int) (int, error) {
		n := calls.Add(1)
		if int(n) <= failures {
			return 0, errBoom
		}
		return in * 10, nil
	})
}

func TestThen_ComposesAndShortCircuits(t *testing.T) {
	double := NodeFunc[int, int](func(_ context.Context, in int) (int, error) { return in * 2, nil })
	format := NodeFunc[int, string](func(_ context.Context, in int) (string, error) { return strconv.Itoa(in), nil })

	out, err := Then[int, int, string](double, format).Process(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	var called bool
	failing := NodeFunc[int, int](func(context.Context, int) (int, error) { return 0, errBoom })
	never := NodeFunc[int, string](func(context.Context, int) (string, error) {
		called = true
		return "", nil
	})
	_, err = Then[int, int, string](failing, never).Process(context.Background(), 1)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, called, "second node should not run after a failure")
}

func TestChain_AppliesInOrder(t *testing.T) {
	add := NodeFunc[int, int](func(_ context.Context, in int) (int, error) { return in + 1, nil })
	mul := NodeFunc[int, int](func(_ context.Context, in int) (int, error) { return in * 3, nil })

	out, err := Chain[int](add, mul, add).Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	node := Retry(flaky(2, &calls), 2, 0, nil)

	out, err := node.Process(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 40, out)
	assert.Equal(t, int32(3), calls.Load(), "should take R failures plus one success")
}

func TestRetry_ExhaustedWrapsLastError(t *testing.T) {
	var calls atomic.Int32
	node := Retry(flaky(100, &calls), 3, 0, nil)

	_, err := node.Process(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRetriesExhausted)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(4), calls.Load())

	var unrecoverable *core.UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
	assert.Equal(t, 4, unrecoverable.Attempts)
}

func TestRetry_WaitsOnClockBetweenAttempts(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	var calls atomic.Int32
	node := Retry(flaky(1, &calls), 1, time.Second, clk)

	done := make(chan error, 1)
	go func() {
		_, err := node.Process(context.Background(), 1)
		done <- err
	}()

	clk.BlockUntil(1)
	assert.Equal(t, int32(1), calls.Load(), "second attempt should wait for the delay")

	clk.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	node := Retry(NodeFunc[int, int](func(context.Context, int) (int, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return 0, errBoom
	}), 10, 0, nil)

	_, err := node.Process(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryWithBackoff_DoublesDelay(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	var calls atomic.Int32
	node := RetryWithBackoff(flaky(2, &calls), 2, time.Second, clk)

	done := make(chan error, 1)
	go func() {
		_, err := node.Process(context.Background(), 1)
		done <- err
	}()

	clk.BlockUntil(1)
	clk.Advance(time.Second)

	clk.BlockUntil(1)
	clk.Advance(time.Second)
	assert.Equal(t, int32(2), calls.Load(), "second delay should be twice the first")

	clk.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryIf_StopsOnNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	invalid := NodeFunc[int, int](func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, core.NewValidationError("in", "rejected")
	})

	_, err := RetryIf(invalid, 3, time.Hour, clock.NewMock(time.Unix(0, 0)), core.IsRetryable).Process(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.ErrorIs(t, err, core.ErrUnrecoverable)

	var unrecoverable *core.UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
	assert.Equal(t, 1, unrecoverable.Attempts)
}

func TestRetryIf_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	transient := NodeFunc[int, int](func(_ context.Context, in int) (int, error) {
		if calls.Add(1) <= 2 {
			return 0, &core.TransientError{Op: "call", Err: errBoom}
		}
		return in, nil
	})

	out, err := RetryIf(transient, 2, 0, nil, core.IsRetryable).Process(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 9, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryWithBackoffIf_NilPredicateRetriesEverything(t *testing.T) {
	var calls atomic.Int32
	out, err := RetryWithBackoffIf(flaky(2, &calls), 2, 0, nil, nil).Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTimeout_FiresOnMockClock(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	innerCanceled := make(chan struct{})
	slow := NodeFunc[int, int](func(ctx context.Context, in int) (int, error) {
		<-ctx.Done()
		close(innerCanceled)
		return 0, ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := Timeout(slow, 5*time.Second, clk).Process(context.Background(), 1)
		done <- err
	}()

	clk.BlockUntil(1)
	clk.Advance(5 * time.Second)

	err := <-done
	assert.ErrorIs(t, err, core.ErrTimeout)
	var timeout *core.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 5*time.Second, timeout.After)

	select {
	case <-innerCanceled:
	case <-time.After(time.Second):
		t.Fatal("inner call context was not canceled")
	}
}

func TestTimeout_FastNodePassesThrough(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	fast := NodeFunc[int, int](func(_ context.Context, in int) (int, error) { return in + 1, nil })

	out, err := Timeout(fast, time.Second, clk).Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	out, err = Timeout(fast, 0, clk).Process(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 6, out)
}

func TestFallback_ReturnsDefaultOnFailure(t *testing.T) {
	failing := NodeFunc[int, string](func(context.Context, int) (string, error) { return "", errBoom })

	for i := 0; i < 3; i++ {
		out, err := Fallback(failing, "default").Process(context.Background(), i)
		require.NoError(t, err)
		assert.Equal(t, "default", out)
	}
}

func TestFallback_StreamYieldsDefaultPerInput(t *testing.T) {
	failing := NodeFunc[int, string](func(context.Context, int) (string, error) { return "", errBoom })
	node := Fallback(failing, "default")

	for name, run := range map[string]func() <-chan Outcome[string]{
		"sequential": func() <-chan Outcome[string] {
			return Sequential(context.Background(), node, feed(intsUpTo(5)...))
		},
		"concurrent": func() <-chan Outcome[string] {
			return Concurrent(context.Background(), node, feed(intsUpTo(5)...), 2)
		},
	} {
		t.Run(name, func(t *testing.T) {
			values, errs := Split(Collect(run()))
			assert.Empty(t, errs)
			assert.Equal(t, []string{"default", "default", "default", "default", "default"}, values)
		})
	}
}

func TestFallbackFunc_SeesError(t *testing.T) {
	failing := NodeFunc[int, string](func(context.Context, int) (string, error) { return "", errBoom })
	node := FallbackFunc(failing, func(_ context.Context, in int, err error) string {
		return strconv.Itoa(in) + ":" + err.Error()
	})

	out, err := node.Process(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "7:boom", out)
}

func TestWithProgress_EmitsPairs(t *testing.T) {
	events := make(chan core.Progress[int], 10)
	node := WithProgress(NodeFunc[int, int](func(_ context.Context, in int) (int, error) {
		if in < 0 {
			return 0, errBoom
		}
		return in, nil
	}), ChannelSink(events))

	out, err := node.Process(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	_, err = node.Process(context.Background(), -1)
	assert.ErrorIs(t, err, errBoom)
	close(events)

	var got []core.Progress[int]
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 4)
	assert.Equal(t, core.ProgressStarted, got[0].Status)
	assert.Equal(t, core.ProgressCompleted, got[1].Status)
	assert.Equal(t, 3, got[1].Item)
	assert.Equal(t, core.ProgressStarted, got[2].Status)
	assert.Equal(t, core.ProgressFailed, got[3].Status)
	assert.ErrorIs(t, got[3].Err, errBoom)
}
