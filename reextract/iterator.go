package reextract

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DefaultBatchSize is the number of records handed to each batch callback.
const DefaultBatchSize = 50

// farFuture bounds date range scans that should include every record.
var farFuture = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)

// RecordIterator walks stored results in insertion order.
type RecordIterator struct {
	repo      storage.ResultRepository
	batchSize int
	since     time.Time
}

// NewRecordIterator creates an iterator over records inserted at or after
// since. A non-positive batchSize falls back to DefaultBatchSize.
func NewRecordIterator(repo storage.ResultRepository, batchSize int, since time.Time) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{repo: repo, batchSize: batchSize, since: since}
}

// Records returns every record in range.
func (it *RecordIterator) Records(ctx context.Context) ([]*core.ResultRecord, error) {
	return it.repo.GetResultsByDateRange(ctx, it.since, farFuture)
}

// ForEach calls fn with consecutive batches, stopping at the first error.
// Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.ResultRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.Records(ctx)
	if err != nil {
		return err
	}
	return forEachBatch(ctx, records, it.batchSize, fn)
}

func forEachBatch(ctx context.Context, records []*core.ResultRecord, size int, fn func([]*core.ResultRecord) error) error {
	for i := 0; i < len(records); i += size {
		end := min(i+size, len(records))
		if err := fn(records[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
