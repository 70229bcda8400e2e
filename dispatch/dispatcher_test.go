package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(n int) core.Document {
	data := []byte{0xFF, 0xD8, 0xFF, byte(n)}
	return core.Document{ID: core.IDFromContent(data), MimeType: "image/jpeg", Data: data}
}

func docs(n int) <-chan core.Document {
	ch := make(chan core.Document, n)
	for i := 0; i < n; i++ {
		ch <- testDoc(i)
	}
	close(ch)
	return ch
}

func newTestDispatcher(t *testing.T, ocr ai.OCRProcessor, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{WithRetry(2, 0)}, opts...)
	d, err := New(ocr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// failingFirst fails the first n calls for every document.
func failingFirst(n int32) (*mock.MockOCR, *atomic.Int32) {
	var calls atomic.Int32
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		if calls.Add(1) <= n {
			return nil, &core.TransientError{Op: "ocr", Err: errors.New("503")}
		}
		return &ai.OCRResult{Text: "ok", Model: "m"}, nil
	})
	return ocr, &calls
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrOCRProcessorRequired)

	_, err = New(mock.NewMockOCR(), WithMaxConcurrency(0))
	assert.Error(t, err)

	_, err = New(mock.NewMockOCR(), WithRetry(-1, 0))
	assert.Error(t, err)

	d, err := New(mock.NewMockOCR(), WithMaxConcurrency(3), WithLogger(nil), WithClock(nil))
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, 3, d.MaxConcurrency())
}

func TestProcessOne_RetriesThenSucceeds(t *testing.T) {
	ocr, calls := failingFirst(2)
	d := newTestDispatcher(t, ocr)

	res, err := d.ProcessOne(context.Background(), testDoc(1))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessOne_ExhaustedYieldsEmptyResult(t *testing.T) {
	ocr, calls := failingFirst(100)
	d := newTestDispatcher(t, ocr)

	res, err := d.ProcessOne(context.Background(), testDoc(1))
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
	assert.Same(t, ai.EmptyOCRResult, res)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessOne_InvalidDocumentIsSubstituted(t *testing.T) {
	ocr := mock.NewMockOCR()
	d := newTestDispatcher(t, ocr)

	res, err := d.ProcessOne(context.Background(), core.Document{MimeType: "image/png"})
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
	assert.Zero(t, ocr.CallCount(), "invalid documents never reach the collaborator")
}

func TestProcessOne_BackoffUsesClock(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	ocr, calls := failingFirst(2)
	d := newTestDispatcher(t, ocr, WithRetry(2, time.Second), WithBackoff(true), WithClock(clk))

	done := make(chan *ai.OCRResult, 1)
	go func() {
		res, _ := d.ProcessOne(context.Background(), testDoc(1))
		done <- res
	}()

	clk.BlockUntil(1)
	clk.Advance(time.Second)
	clk.BlockUntil(1)
	clk.Advance(2 * time.Second)

	res := <-done
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcess_RespectsCeiling(t *testing.T) {
	const ceiling, total = 2, 20
	var inFlight, peak atomic.Int32
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return &ai.OCRResult{Text: string(data)}, nil
	})
	d := newTestDispatcher(t, ocr, WithMaxConcurrency(ceiling))

	count := 0
	for res := range d.Process(context.Background(), docs(total)) {
		assert.False(t, res.IsEmpty())
		count++
	}
	assert.Equal(t, total, count)
	assert.LessOrEqual(t, peak.Load(), int32(ceiling))
}

func TestProcess_FailuresBecomeEmptyResults(t *testing.T) {
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		if data[3]%2 == 1 {
			return nil, errors.New("unreadable")
		}
		return &ai.OCRResult{Text: "ok"}, nil
	})
	d := newTestDispatcher(t, ocr, WithRetry(0, 0))

	empty, ok := 0, 0
	for res := range d.Process(context.Background(), docs(6)) {
		if res.IsEmpty() {
			empty++
		} else {
			ok++
		}
	}
	assert.Equal(t, 3, empty)
	assert.Equal(t, 3, ok)
}

func TestProcessAnnotated_ReportsErrorsPerDocument(t *testing.T) {
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		if data[3] == 2 {
			return nil, errors.New("unreadable")
		}
		return &ai.OCRResult{Text: "ok"}, nil
	})
	d := newTestDispatcher(t, ocr, WithRetry(1, 0))

	var failed []Annotated
	total := 0
	for a := range d.ProcessAnnotated(context.Background(), docs(4)) {
		total++
		if a.Err != nil {
			assert.Nil(t, a.Result)
			failed = append(failed, a)
			continue
		}
		assert.NotNil(t, a.Result)
	}
	assert.Equal(t, 4, total)
	require.Len(t, failed, 1)
	assert.Equal(t, byte(2), failed[0].Document.Data[3])
	assert.ErrorIs(t, failed[0].Err, core.ErrRetriesExhausted)
}

func TestProcessBatches_ChunksAndReports(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	d := newTestDispatcher(t, mock.NewMockOCR(), WithClock(clk))

	reports, err := d.ProcessBatches(context.Background(), docs(7), 3)
	require.NoError(t, err)

	var sizes []int
	ids := map[string]bool{}
	for r := range reports {
		sizes = append(sizes, r.Size)
		assert.Len(t, r.Results, r.Size)
		assert.Zero(t, r.Failed)
		ids[r.ID.String()] = true
		for i, res := range r.Results {
			require.NotNil(t, res, "result %d of batch %d", i, r.Index)
		}
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, ids, 3, "every batch gets its own id")
}

func TestProcessBatches_ChunksRunOneAtATime(t *testing.T) {
	var inFlight, peak atomic.Int32
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return &ai.OCRResult{Text: "ok"}, nil
	})
	d := newTestDispatcher(t, ocr)

	reports, err := d.ProcessBatches(context.Background(), docs(9), 3)
	require.NoError(t, err)
	n := 0
	for range reports {
		n++
	}
	assert.Equal(t, 3, n)
	assert.LessOrEqual(t, peak.Load(), int32(3), "only one chunk may be in flight")
}

func TestProcessBatches_InvalidSize(t *testing.T) {
	d := newTestDispatcher(t, mock.NewMockOCR())
	_, err := d.ProcessBatches(context.Background(), docs(1), 0)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestProcessPrioritized_LowestFirst(t *testing.T) {
	var order []int
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		order = append(order, int(data[3]))
		return &ai.OCRResult{Text: "ok"}, nil
	})
	d := newTestDispatcher(t, ocr, WithMaxConcurrency(1))

	priorities := []int{5, 1, 3, 0, 2}
	in := make(chan Prioritized, len(priorities))
	for _, p := range priorities {
		in <- Prioritized{Document: testDoc(p), Priority: p}
	}
	close(in)

	n := 0
	for a := range d.ProcessPrioritized(context.Background(), in) {
		require.NoError(t, a.Err)
		n++
	}
	assert.Equal(t, len(priorities), n)
	assert.Equal(t, []int{0, 1, 2, 3, 5}, order)
}

func TestProcessPrioritized_EqualPrioritiesKeepArrivalOrder(t *testing.T) {
	var order []int
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		order = append(order, int(data[3]))
		return &ai.OCRResult{Text: "ok"}, nil
	})
	d := newTestDispatcher(t, ocr, WithMaxConcurrency(1))

	in := make(chan Prioritized, 4)
	for i := 0; i < 4; i++ {
		in <- Prioritized{Document: testDoc(i), Priority: 1}
	}
	close(in)

	for range d.ProcessPrioritized(context.Background(), in) {
	}
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestClose_StopsAdmission(t *testing.T) {
	ocr := mock.NewMockOCR()
	d, err := New(ocr, WithRetry(0, 0))
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "close is idempotent")

	_, err = d.ProcessOne(context.Background(), testDoc(1))
	assert.ErrorIs(t, err, ErrDispatcherClosed)

	_, err = d.ProcessBatches(context.Background(), docs(1), 1)
	assert.ErrorIs(t, err, ErrDispatcherClosed)

	in := make(chan core.Document)
	var results []*ai.OCRResult
	for res := range d.Process(context.Background(), in) {
		results = append(results, res)
	}
	assert.Empty(t, results)
	assert.Zero(t, ocr.CallCount())
}

func TestClose_LetsInFlightFinish(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	ocr := mock.NewMockOCR().WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
		close(started)
		<-release
		return &ai.OCRResult{Text: "late"}, nil
	})
	d, err := New(ocr, WithRetry(0, 0))
	require.NoError(t, err)

	done := make(chan *ai.OCRResult, 1)
	go func() {
		res, _ := d.ProcessOne(context.Background(), testDoc(1))
		done <- res
	}()

	<-started
	require.NoError(t, d.Close())
	close(release)

	assert.Equal(t, "late", (<-done).Text)
}

func TestNode_ComposesWithoutPool(t *testing.T) {
	d := newTestDispatcher(t, mock.NewMockOCR())
	res, err := d.Node().Process(context.Background(), testDoc(3))
	require.NoError(t, err)
	assert.Equal(t, "text:image/jpeg:4", res.Text)
}

func TestPriorityQueue_Order(t *testing.T) {
	q := priorityQueue{}
	items := []*queued{
		{item: Prioritized{Priority: 2}, seq: 0},
		{item: Prioritized{Priority: 1}, seq: 1},
		{item: Prioritized{Priority: 1}, seq: 2},
	}
	q = append(q, items...)
	sort.Sort(q)
	assert.Equal(t, uint64(1), q[0].seq)
	assert.Equal(t, uint64(2), q[1].seq)
	assert.Equal(t, uint64(0), q[2].seq)
}
