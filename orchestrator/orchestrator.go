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

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// Handler processes one request. It must be safe for concurrent use.
type Handler = pipeline.Node[*core.Request, *core.Result]

// Publisher receives terminal results and statistics snapshots in addition
// to the orchestrator's channels.
type Publisher interface {
	PublishResult(ctx context.Context, res *core.Result) error
	PublishError(ctx context.Context, res *core.Result) error
	PublishStatistics(ctx context.Context, stats core.PipelineStatistics) error
}

// Orchestrator is a rate-limited, priority-grouped request runner.
type Orchestrator struct {
	handler        Handler
	maxConcurrency int
	rateLimit      int
	rateWindow     time.Duration
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	statsInterval  time.Duration
	bufferSize     int
	clock          clock.Clock
	logger         *slog.Logger
	publisher      Publisher

	policy pipeline.Node[*core.Request, *core.Result]
	pool   *ants.Pool

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	groups  map[int]*group
	started bool
	closed  bool

	groupsWG  sync.WaitGroup
	tasksWG   sync.WaitGroup
	statsDone chan struct{}
	statsWG   sync.WaitGroup

	successes chan *core.Result
	errs      chan *core.Result
	stats     chan core.PipelineStatistics

	succeeded atomic.Int64
	failed    atomic.Int64
}

// group is the queue and limiter of one priority value.
type group struct {
	priority int
	queue    chan *tracked
	limiter  *windowLimiter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxConcurrency sets the global ceiling on in-flight handler calls.
// Default is runtime.NumCPU().
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("max concurrency must be at least 1, got %d", n)
		}
		o.maxConcurrency = n
		return nil
	}
}

// WithRateLimit admits at most k requests per window in each priority group.
// A zero k disables rate limiting. Default is 10 per second.
func WithRateLimit(k int, window time.Duration) Option {
	return func(o *Orchestrator) error {
		if k < 0 || window < 0 {
			return fmt.Errorf("rate limit cannot be negative, got %d per %s", k, window)
		}
		o.rateLimit = k
		o.rateWindow = window
		return nil
	}
}

// WithRetries sets how many times a failed request is retried and the delay
// between attempts. Default is 2 retries, 500ms apart.
func WithRetries(n int, delay time.Duration) Option {
	return func(o *Orchestrator) error {
		if n < 0 || delay < 0 {
			return fmt.Errorf("retries cannot be negative, got %d after %s", n, delay)
		}
		o.maxRetries = n
		o.retryDelay = delay
		return nil
	}
}

// WithTimeout bounds every handler attempt. Zero disables the bound.
// Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d < 0 {
			return fmt.Errorf("timeout cannot be negative, got %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithStatisticsInterval sets how often statistics are published. Zero
// disables the statistics loop. Default is 5 seconds.
func WithStatisticsInterval(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d < 0 {
			return fmt.Errorf("statistics interval cannot be negative, got %s", d)
		}
		o.statsInterval = d
		return nil
	}
}

// WithBufferSize sets the capacity of each priority queue and output channel.
// Default is 64.
func WithBufferSize(n int) Option {
	return func(o *Orchestrator) error {
		if n < 0 {
			return fmt.Errorf("buffer size cannot be negative, got %d", n)
		}
		o.bufferSize = n
		return nil
	}
}

// WithClock sets the clock used for rate windows, retries, timeouts and statistics.
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) error {
		o.clock = clock.OrReal(clk)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithPublisher forwards terminal results and statistics to p.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) error {
		o.publisher = p
		return nil
	}
}

// New creates an orchestrator around handler. Call Start before Submit.
func New(handler Handler, opts ...Option) (*Orchestrator, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	o := &Orchestrator{
		handler:        handler,
		maxConcurrency: max(runtime.NumCPU(), 1),
		rateLimit:      10,
		rateWindow:     time.Second,
		maxRetries:     2,
		retryDelay:     500 * time.Millisecond,
		timeout:        30 * time.Second,
		statsInterval:  5 * time.Second,
		bufferSize:     64,
		clock:          clock.Real(),
		logger:         slog.Default(),
		groups:         make(map[int]*group),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")

	// Timeout applies to each attempt, so it sits inside Retry.
	attempt := pipeline.Timeout(o.handler, o.timeout, o.clock)
	o.policy = pipeline.RetryIf(attempt, o.maxRetries, o.retryDelay, o.clock, core.IsRetryable)

	o.successes = make(chan *core.Result, o.bufferSize)
	o.errs = make(chan *core.Result, o.bufferSize)
	o.stats = make(chan core.PipelineStatistics, 1)
	o.statsDone = make(chan struct{})
	return o, nil
}

// Start launches the statistics loop and enables Submit. Cancelling ctx stops
// admission and detaches consumers from requests still waiting.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.started {
		return ErrAlreadyStarted
	}

	pool, err := ants.NewPool(o.maxConcurrency)
	if err != nil {
		return err
	}
	o.pool = pool
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.started = true

	if o.statsInterval > 0 {
		ticker := o.clock.NewTicker(o.statsInterval)
		o.statsWG.Add(1)
		go o.statisticsLoop(ticker)
	}

	o.logger.Info("orchestrator started",
		"maxConcurrency", o.maxConcurrency,
		"rateLimit", o.rateLimit,
		"rateWindow", o.rateWindow)
	return nil
}

// Submit validates req and queues it in its priority group. An empty ID is
// replaced with a generated one. Submit blocks while the group's queue is full.
func (o *Orchestrator) Submit(req *core.Request) error {
	if err := core.ValidateRequest(req); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrClosed
	}
	if !o.started {
		return ErrNotStarted
	}

	g, ok := o.groups[req.Priority]
	if !ok {
		o.mu.RUnlock()
		g = o.createGroup(req.Priority)
		o.mu.RLock()
		if o.closed {
			return ErrClosed
		}
	}

	t := newTracked(req, o.clock.Now())
	select {
	case g.queue <- t:
		o.logger.Debug("request received", "request", req.ID, "priority", req.Priority)
		return nil
	case <-o.ctx.Done():
		return o.ctx.Err()
	}
}

// createGroup returns the group for priority, starting it on first use.
func (o *Orchestrator) createGroup(priority int) *group {
	o.mu.Lock()
	defer o.mu.Unlock()

	if g, ok := o.groups[priority]; ok {
		return g
	}
	g := &group{
		priority: priority,
		queue:    make(chan *tracked, o.bufferSize),
		limiter:  newWindowLimiter(o.clock, o.rateLimit, o.rateWindow),
	}
	if o.closed {
		// Never started; the caller sees ErrClosed.
		return g
	}
	o.groups[priority] = g
	o.groupsWG.Add(1)
	go o.runGroup(g)
	return g
}

// runGroup admits a group's requests through its limiter into the global pool.
func (o *Orchestrator) runGroup(g *group) {
	defer o.groupsWG.Done()
	logger := o.logger.With("priority", g.priority)

	for t := range g.queue {
		if err := g.limiter.Acquire(o.ctx); err != nil {
			logger.Debug("admission stopped", "request", t.req.ID, "err", err)
			continue
		}
		if !t.transition(core.StateReceived, core.StateDispatched) {
			continue
		}

		o.tasksWG.Add(1)
		err := o.pool.Submit(func() {
			defer o.tasksWG.Done()
			o.execute(t)
		})
		if err != nil {
			o.tasksWG.Done()
			o.fail(t, fmt.Errorf("submit to worker pool: %w", err))
		}
	}
}

// execute runs the policy stack and publishes the terminal result. Any
// failure left after retries becomes an error Result.
func (o *Orchestrator) execute(t *tracked) {
	res, err := o.policy.Process(o.ctx, t.req)
	if err != nil {
		o.fail(t, err)
		return
	}
	if !t.transition(core.StateDispatched, core.StateSucceeded) {
		return
	}
	if res == nil {
		res = &core.Result{}
	}
	res.RequestID = t.req.ID
	res.Success = true
	res.Error = ""
	res.Err = nil
	if res.Elapsed == 0 {
		res.Elapsed = o.clock.Now().Sub(t.received)
	}
	o.succeeded.Add(1)
	o.deliver(o.successes, res)
	if o.publisher != nil {
		if perr := o.publisher.PublishResult(o.ctx, res); perr != nil {
			o.logger.Warn("failed to publish result", "request", res.RequestID, "err", perr)
		}
	}
}

func (o *Orchestrator) fail(t *tracked, err error) {
	if !t.transition(core.StateDispatched, core.StateFailed) {
		return
	}
	res := &core.Result{
		RequestID: t.req.ID,
		Success:   false,
		Error:     err.Error(),
		Elapsed:   o.clock.Now().Sub(t.received),
		Err:       err,
	}
	o.failed.Add(1)
	o.logger.Warn("request failed", "request", t.req.ID, "err", err)
	o.deliver(o.errs, res)
	if o.publisher != nil {
		if perr := o.publisher.PublishError(o.ctx, res); perr != nil {
			o.logger.Warn("failed to publish error", "request", res.RequestID, "err", perr)
		}
	}
}

// deliver sends a terminal result unless the orchestrator's context is done.
func (o *Orchestrator) deliver(ch chan<- *core.Result, res *core.Result) {
	select {
	case ch <- res:
	case <-o.ctx.Done():
		o.logger.Debug("result dropped after cancellation", "request", res.RequestID)
	}
}

// statisticsLoop publishes a snapshot every tick. A snapshot nobody is ready
// to receive is replaced by the next one.
func (o *Orchestrator) statisticsLoop(ticker clock.Ticker) {
	defer o.statsWG.Done()
	defer ticker.Stop()

	for {
		select {
		case <-o.statsDone:
			return
		case <-o.ctx.Done():
			return
		case <-ticker.C():
			snapshot := o.Snapshot()
			select {
			case o.stats <- snapshot:
			default:
				select {
				case <-o.stats:
				default:
				}
				select {
				case o.stats <- snapshot:
				default:
				}
			}
			if o.publisher != nil {
				if err := o.publisher.PublishStatistics(o.ctx, snapshot); err != nil {
					o.logger.Debug("failed to publish statistics", "err", err)
				}
			}
		}
	}
}

// Snapshot computes statistics from the running counters.
func (o *Orchestrator) Snapshot() core.PipelineStatistics {
	return core.NewPipelineStatistics(o.clock.Now(), o.succeeded.Load(), o.failed.Load())
}

// Successes delivers successful results. Closed by Close.
func (o *Orchestrator) Successes() <-chan *core.Result {
	return o.successes
}

// Errors delivers failed results. Closed by Close.
func (o *Orchestrator) Errors() <-chan *core.Result {
	return o.errs
}

// Statistics delivers periodic snapshots. Closed by Close.
func (o *Orchestrator) Statistics() <-chan core.PipelineStatistics {
	return o.stats
}

// Close stops admission, lets queued and in-flight requests finish, then
// closes the output channels. Consumers must keep reading Successes and
// Errors until they close, or cancel the Start context to abandon pending work.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	started := o.started
	for _, g := range o.groups {
		close(g.queue)
	}
	o.mu.Unlock()

	if started {
		o.groupsWG.Wait()
		o.tasksWG.Wait()
		close(o.statsDone)
		o.statsWG.Wait()
		o.pool.Release()
		o.cancel()
	}

	close(o.successes)
	close(o.errs)
	close(o.stats)

	o.logger.Info("orchestrator closed",
		"succeeded", o.succeeded.Load(),
		"failed", o.failed.Load())
	return nil
}
