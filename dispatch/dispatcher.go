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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// Dispatcher applies retry, fallback and a concurrency ceiling to an OCR collaborator.
type Dispatcher struct {
	ocr            ai.OCRProcessor
	maxConcurrency int
	maxRetries     int
	retryDelay     time.Duration
	backoff        bool
	clock          clock.Clock
	logger         *slog.Logger

	pool      *ants.Pool
	retried   pipeline.Node[core.Document, *ai.OCRResult]
	guarded   pipeline.Node[core.Document, *ai.OCRResult]
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithMaxConcurrency sets the global ceiling on in-flight OCR calls.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		if n < 1 {
			return fmt.Errorf("max concurrency must be at least 1, got %d", n)
		}
		d.maxConcurrency = n
		return nil
	}
}

// WithRetry sets how many times a failed call is retried and the delay between attempts.
// Default is 3 retries, one second apart.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(d *Dispatcher) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries cannot be negative, got %d", maxRetries)
		}
		if delay < 0 {
			return fmt.Errorf("retry delay cannot be negative, got %s", delay)
		}
		d.maxRetries = maxRetries
		d.retryDelay = delay
		return nil
	}
}

// WithBackoff doubles the retry delay after every failed attempt.
func WithBackoff(enabled bool) Option {
	return func(d *Dispatcher) error {
		d.backoff = enabled
		return nil
	}
}

// WithClock sets the clock used for retry delays and batch timing.
func WithClock(clk clock.Clock) Option {
	return func(d *Dispatcher) error {
		d.clock = clock.OrReal(clk)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// New creates a dispatcher around ocr.
func New(ocr ai.OCRProcessor, opts ...Option) (*Dispatcher, error) {
	if ocr == nil {
		return nil, ErrOCRProcessorRequired
	}

	d := &Dispatcher{
		ocr:            ocr,
		maxConcurrency: max(runtime.NumCPU(), 1),
		maxRetries:     3,
		retryDelay:     time.Second,
		clock:          clock.Real(),
		logger:         slog.Default(),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "dispatcher")

	pool, err := ants.NewPool(d.maxConcurrency)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	base := pipeline.NodeFunc[core.Document, *ai.OCRResult](d.recognize)
	if d.backoff {
		d.retried = pipeline.RetryWithBackoffIf(base, d.maxRetries, d.retryDelay, d.clock, core.IsRetryable)
	} else {
		d.retried = pipeline.RetryIf(base, d.maxRetries, d.retryDelay, d.clock, core.IsRetryable)
	}
	d.guarded = pipeline.FallbackFunc(d.retried, func(_ context.Context, doc core.Document, err error) *ai.OCRResult {
		d.logger.Warn("ocr failed, substituting empty result", "document", doc.ID, "err", err)
		return ai.EmptyOCRResult
	})

	return d, nil
}

func (d *Dispatcher) recognize(ctx context.Context, doc core.Document) (*ai.OCRResult, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	res, err := d.ocr.Process(ctx, doc.Data, doc.MimeType)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &core.TransientError{Op: "ocr", Err: errors.New("collaborator returned no result")}
	}
	return res, nil
}

// Node returns the full per-document policy stack (retry then fallback) as a
// pipeline node. It does not pass through the dispatcher's worker pool.
func (d *Dispatcher) Node() pipeline.Node[core.Document, *ai.OCRResult] {
	return d.guarded
}

// MaxConcurrency returns the global ceiling.
func (d *Dispatcher) MaxConcurrency() int {
	return d.maxConcurrency
}

// Running returns the number of OCR calls currently in flight.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// ProcessOne dispatches a single document and waits for its result.
// Documents that fail every attempt yield ai.EmptyOCRResult, not an error.
func (d *Dispatcher) ProcessOne(ctx context.Context, doc core.Document) (*ai.OCRResult, error) {
	if d.isClosed() {
		return nil, ErrDispatcherClosed
	}

	result := make(chan *ai.OCRResult, 1)
	if err := d.pool.Submit(func() {
		res, _ := d.guarded.Process(ctx, doc)
		result <- res
	}); err != nil {
		return nil, d.submitError(err)
	}

	select {
	case res := <-result:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Process dispatches a stream of documents. Exactly one result is emitted
// per admitted document, in completion order.
func (d *Dispatcher) Process(ctx context.Context, in <-chan core.Document) <-chan *ai.OCRResult {
	outcomes := pipeline.ConcurrentOn(ctx, d.guarded, admit(ctx, d.done, in), d.pool)

	out := make(chan *ai.OCRResult)
	go func() {
		defer close(out)
		for o := range outcomes {
			res := o.Value
			if o.Err != nil {
				d.logger.Warn("document not dispatched", "err", o.Err)
				res = ai.EmptyOCRResult
			}
			select {
			case out <- res:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// Annotated pairs a document with its OCR result or error. Exactly one of
// Result and Err is set.
type Annotated struct {
	Document core.Document
	Result   *ai.OCRResult
	Err      error
}

// ProcessAnnotated dispatches a stream of documents with retry but without
// fallback, reporting each failure next to the document that caused it.
func (d *Dispatcher) ProcessAnnotated(ctx context.Context, in <-chan core.Document) <-chan Annotated {
	annotate := pipeline.NodeFunc[core.Document, Annotated](func(ctx context.Context, doc core.Document) (Annotated, error) {
		return d.annotate(ctx, doc), nil
	})
	outcomes := pipeline.ConcurrentOn(ctx, annotate, admit(ctx, d.done, in), d.pool)

	out := make(chan Annotated)
	go func() {
		defer close(out)
		for o := range outcomes {
			a := o.Value
			if o.Err != nil {
				a = Annotated{Err: d.submitError(o.Err)}
			}
			select {
			case out <- a:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func (d *Dispatcher) annotate(ctx context.Context, doc core.Document) Annotated {
	res, err := d.retried.Process(ctx, doc)
	if err != nil {
		return Annotated{Document: doc, Err: err}
	}
	return Annotated{Document: doc, Result: res}
}

// Close stops admission of new documents and releases the worker pool.
// Calls already running finish on their own. Close is idempotent.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.pool.Release()
		d.logger.Debug("dispatcher closed")
	})
	return nil
}

func (d *Dispatcher) isClosed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) submitError(err error) error {
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrDispatcherClosed
	}
	return err
}

// admit forwards items from in until in closes, ctx is done or done is closed.
func admit[T any](ctx context.Context, done <-chan struct{}, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- item:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()
	return out
}
