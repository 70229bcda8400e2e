package storage

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/core"
)

// ResultRepository stores processed document results.
// Implementations must be thread-safe and support concurrent access.
type ResultRepository interface {
	// SaveResults stores one or more records.
	// Records with ID=0 get a new ID from the sequence; a record with a known
	// ID replaces the stored one. InsertedAt is set if not already set.
	// Returns the records with IDs and timestamps populated.
	SaveResults(ctx context.Context, records ...*core.ResultRecord) ([]*core.ResultRecord, error)

	// GetResult retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetResult(ctx context.Context, id core.ID) (*core.ResultRecord, error)

	// GetResultByRequestID retrieves the record produced for a request.
	// Returns ErrNotFound if no record carries that request ID.
	GetResultByRequestID(ctx context.Context, requestID string) (*core.ResultRecord, error)

	// GetResultsByDateRange retrieves records where start <= InsertedAt < end,
	// ordered by insertion time.
	GetResultsByDateRange(ctx context.Context, start, end time.Time) ([]*core.ResultRecord, error)

	// GetRecentResults retrieves up to limit records, most recent first.
	GetRecentResults(ctx context.Context, limit int) ([]*core.ResultRecord, error)

	// DeleteResults removes records and their indices.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteResults(ctx context.Context, ids ...core.ID) error

	// Close releases the repository's resources.
	Close() error
}
