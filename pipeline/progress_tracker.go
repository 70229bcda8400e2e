package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/core"
)

// ProgressTracker renders a running count of finished items to a writer.
type ProgressTracker struct {
	writer         io.Writer
	clock          clock.Clock
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for total items that reports every
// reportInterval finished items. A nil clock uses wall time.
func NewProgressTracker(writer io.Writer, total, reportInterval int, clk clock.Clock) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		clock:          clock.OrReal(clk),
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = p.clock.Now()
	p.started = true
	p.current = 0
	p.failed = 0
	p.lastReported = 0
}

// Increment records delta finished items, failed ones included.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current += delta
	if p.total > 0 && p.current > p.total {
		p.current = p.total
	}

	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints final progress followed by a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if p.total > 0 {
		p.current = p.total
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Failed returns the number of items reported as failed.
func (p *ProgressTracker) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return p.clock.Now().Sub(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := p.clock.Now().Sub(p.startTime); elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %d failed - %.1f docs/s",
		p.current, p.total, percentage, p.failed, rate)
}

// TrackProgress returns a sink that counts Completed and Failed events.
func TrackProgress[T any](p *ProgressTracker) ProgressSink[T] {
	return func(ev core.Progress[T]) {
		switch ev.Status {
		case core.ProgressFailed:
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()
			p.Increment(1)
		case core.ProgressCompleted:
			p.Increment(1)
		}
	}
}
