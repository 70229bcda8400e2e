package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/poiesic/docpipe/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	clk := clock.NewMock(time.Unix(0, 0))
	tracker := NewProgressTracker(&buf, 100, 10, clk)

	tracker.Start()
	clk.Advance(10 * time.Second)
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 10*time.Second, tracker.Elapsed())
	output := buf.String()
	assert.Contains(t, output, "100/100")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "10.0 docs/s")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1, nil)

	tracker.Increment(5)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10, clock.NewMock(time.Unix(0, 0)))

	tracker.Start()
	tracker.Increment(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100")
	assert.Contains(t, output, "\n")
}

func TestTrackProgress_CountsFailures(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 1, clock.NewMock(time.Unix(0, 0)))
	tracker.Start()

	node := WithProgress(NodeFunc[int, int](func(_ context.Context, in int) (int, error) {
		if in == 3 {
			return 0, errBoom
		}
		return in, nil
	}), TrackProgress[int](tracker))

	outcomes := Collect(Sequential(context.Background(), node, feed(1, 2, 3, 4)))
	require.Len(t, outcomes, 4)

	assert.Equal(t, 1, tracker.Failed())
	assert.Contains(t, buf.String(), "4/4")
	assert.Contains(t, buf.String(), "1 failed")
}
