package dispatch

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"golang.org/x/sync/errgroup"
)

// BatchReport describes one processed chunk.
type BatchReport struct {
	ID       ulid.ULID
	Index    int
	Size     int
	Failed   int
	Duration time.Duration
	// Results are in the same order as the chunk's documents.
	Results []*ai.OCRResult
}

// ProcessBatches splits the stream into chunks of up to size documents. The
// documents of a chunk are dispatched together and the next chunk starts only
// after the whole chunk finished. A trailing partial chunk is processed when
// in closes.
func (d *Dispatcher) ProcessBatches(ctx context.Context, in <-chan core.Document, size int) (<-chan BatchReport, error) {
	if size < 1 {
		return nil, ErrInvalidBatchSize
	}
	if d.isClosed() {
		return nil, ErrDispatcherClosed
	}

	docs := admit(ctx, d.done, in)
	out := make(chan BatchReport)
	go func() {
		defer close(out)

		index := 0
		chunk := make([]core.Document, 0, size)
		for {
			doc, ok := <-docs
			if ok {
				chunk = append(chunk, doc)
				if len(chunk) < size {
					continue
				}
			}
			if len(chunk) > 0 {
				report := d.runBatch(ctx, index, chunk)
				select {
				case out <- report:
				case <-ctx.Done():
					return
				}
				index++
				chunk = make([]core.Document, 0, size)
			}
			if !ok {
				return
			}
		}
	}()
	return out, nil
}

func (d *Dispatcher) runBatch(ctx context.Context, index int, chunk []core.Document) BatchReport {
	id := ulid.Make()
	start := d.clock.Now()
	results := make([]*ai.OCRResult, len(chunk))

	var g errgroup.Group
	for i, doc := range chunk {
		g.Go(func() error {
			res, _ := d.guarded.Process(ctx, doc)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.IsEmpty() {
			failed++
		}
	}

	report := BatchReport{
		ID:       id,
		Index:    index,
		Size:     len(chunk),
		Failed:   failed,
		Duration: d.clock.Now().Sub(start),
		Results:  results,
	}
	d.logger.Debug("batch complete",
		"batch", report.ID,
		"index", index,
		"size", report.Size,
		"failed", failed,
		"duration", report.Duration)
	return report
}
