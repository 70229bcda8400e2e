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

package reextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
	"golang.org/x/sync/errgroup"
)

// MetadataKey is set on every record rewritten by a run.
const MetadataKey = "reextracted_at"

var errNoResult = errors.New("extractor returned no result")

// Config holds configuration for a re-extraction run.
type Config struct {
	// BatchSize is the number of records written back per transaction
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// Concurrency bounds extractor calls in flight within a batch
	Concurrency int

	// MaxRetries is the maximum number of retry attempts per record
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Since limits the run to records inserted at or after this time
	Since time.Time

	// FailedOnly skips records whose extraction already succeeded
	FailedOnly bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 10,
		Concurrency:    4,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary counts what a run did.
type Summary struct {
	Total   int // records in range
	Updated int
	Skipped int // no OCR text, or already successful with FailedOnly
	Failed  int // extractor errors after retries
	Elapsed time.Duration
}

// Option configures a Reextractor.
type Option func(*Reextractor)

// WithClock sets the clock used for retry delays, progress and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(r *Reextractor) {
		r.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reextractor) {
		r.logger = logger
	}
}

// Reextractor feeds stored OCR text back through an extractor.
type Reextractor struct {
	repo      storage.ResultRepository
	extractor ai.Extractor
	config    *Config
	progress  io.Writer
	iterator  *RecordIterator
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a Reextractor. progress receives human readable progress
// output; pass io.Discard to silence it.
func New(repo storage.ResultRepository, extractor ai.Extractor, config *Config, progress io.Writer, opts ...Option) *Reextractor {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	r := &Reextractor{
		repo:      repo,
		extractor: extractor,
		config:    config,
		progress:  progress,
		iterator:  NewRecordIterator(repo, config.BatchSize, config.Since),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.clock = clock.OrReal(r.clock)
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "reextract")
	return r
}

// Run re-extracts every eligible record. A failure to read or write the
// store aborts the run; extractor failures only count against Summary.Failed.
func (r *Reextractor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	records, err := r.iterator.Records(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to query records: %w", err)
	}
	summary.Total = len(records)

	candidates := make([]*core.ResultRecord, 0, len(records))
	for _, rec := range records {
		if rec.Text == "" || (r.config.FailedOnly && rec.Success) {
			summary.Skipped++
			continue
		}
		candidates = append(candidates, rec)
	}

	if len(candidates) == 0 {
		fmt.Fprintf(r.progress, "No records to re-extract (%d skipped)\n", summary.Skipped)
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Starting re-extraction of %d records (batch size: %d)\n",
		len(candidates), r.iterator.batchSize)

	tracker := pipeline.NewProgressTracker(r.progress, len(candidates), r.config.ReportInterval, r.clock)
	tracker.Start()

	extract := pipeline.WithProgress(
		pipeline.RetryWithBackoffIf(r.extractNode(), r.config.MaxRetries, r.config.RetryDelay, r.clock, core.IsRetryable),
		pipeline.TrackProgress[*core.ResultRecord](tracker),
	)

	err = forEachBatch(ctx, candidates, r.iterator.batchSize, func(batch []*core.ResultRecord) error {
		updated, err := r.processBatch(ctx, extract, batch)
		summary.Updated += updated
		return err
	})
	tracker.Finish()
	summary.Failed = tracker.Failed()
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		return summary, err
	}

	fmt.Fprintf(r.progress, "Re-extraction complete. Updated %d of %d records in %v (%d failed, %d skipped)\n",
		summary.Updated, summary.Total, summary.Elapsed.Round(time.Millisecond), summary.Failed, summary.Skipped)
	return summary, nil
}

func (r *Reextractor) extractNode() pipeline.Node[*core.ResultRecord, *ai.ExtractionResult] {
	return pipeline.NodeFunc[*core.ResultRecord, *ai.ExtractionResult](func(ctx context.Context, rec *core.ResultRecord) (*ai.ExtractionResult, error) {
		res, err := r.extractor.Extract(ctx, rec.Text, rec.DocumentType)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errNoResult
		}
		return res, nil
	})
}

// processBatch extracts batch concurrently and writes back the records that
// produced a result.
func (r *Reextractor) processBatch(ctx context.Context, extract pipeline.Node[*core.ResultRecord, *ai.ExtractionResult], batch []*core.ResultRecord) (int, error) {
	results := make([]*ai.ExtractionResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.config.Concurrency, 1))
	for i, rec := range batch {
		g.Go(func() error {
			res, err := extract.Process(gctx, rec)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.logger.Warn("extraction failed", "id", rec.Id, "request", rec.RequestID, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	changed := make([]*core.ResultRecord, 0, len(batch))
	for i, rec := range batch {
		if results[i] == nil {
			continue
		}
		apply(rec, results[i])
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string, 1)
		}
		rec.Metadata[MetadataKey] = now
		changed = append(changed, rec)
	}
	if len(changed) == 0 {
		return 0, nil
	}

	if _, err := r.repo.SaveResults(ctx, changed...); err != nil {
		return 0, fmt.Errorf("failed to update records: %w", err)
	}
	r.logger.Debug("batch updated", "records", len(changed))
	return len(changed), nil
}

// apply copies an extraction onto rec. The OCR model is kept when present
// and token usage accumulates.
func apply(rec *core.ResultRecord, res *ai.ExtractionResult) {
	rec.Payload = res.Data
	rec.Confidence = res.Confidence
	rec.Success = res.Success
	rec.Error = res.Error
	if rec.Model == "" {
		rec.Model = res.Model
	}
	rec.TotalTokens += res.TotalTokens
	if !rec.Success && rec.Error == "" {
		rec.Error = fmt.Sprintf("confidence %.2f below threshold", res.Confidence)
	}
}
