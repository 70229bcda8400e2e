package clock

import (
	"sort"
	"sync"
	"time"
)

// Mock is a virtual Clock. Time only moves when Advance or Set is called,
// at which point every timer and ticker that became due fires in deadline order.
type Mock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	timers  []*mockTimer
	tickers []*mockTicker
}

type mockTimer struct {
	deadline time.Time
	ch       chan time.Time
}

type mockTicker struct {
	clock   *Mock
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

var _ Clock = (*Mock)(nil)

// NewMock creates a Mock starting at start.
func NewMock(start time.Time) *Mock {
	m := &Mock{now: start}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Now returns the virtual time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After registers a timer. Non-positive durations fire immediately.
func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.now
		return ch
	}
	m.timers = append(m.timers, &mockTimer{deadline: m.now.Add(d), ch: ch})
	m.cond.Broadcast()
	return ch
}

// NewTicker registers a ticker. Ticks are dropped when the receiver lags,
// matching time.Ticker.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTicker{clock: m, period: d, next: m.now.Add(d), ch: make(chan time.Time, 1)}
	m.tickers = append(m.tickers, t)
	m.cond.Broadcast()
	return t
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves the clock to t, firing due timers and ticks along the way.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.timers, func(i, j int) bool {
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})

	remaining := m.timers[:0]
	for _, timer := range m.timers {
		if timer.deadline.After(t) {
			remaining = append(remaining, timer)
			continue
		}
		timer.ch <- timer.deadline
	}
	m.timers = remaining

	live := m.tickers[:0]
	for _, tk := range m.tickers {
		if tk.stopped {
			continue
		}
		for !tk.next.After(t) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.period)
		}
		live = append(live, tk)
	}
	m.tickers = live

	if t.After(m.now) {
		m.now = t
	}
}

// Waiters returns the number of pending timers.
func (m *Mock) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// BlockUntil blocks until at least n timers are pending. Tests use it to
// make sure a goroutine is parked on the clock before advancing it.
func (m *Mock) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.timers) < n {
		m.cond.Wait()
	}
}

func (t *mockTicker) C() <-chan time.Time {
	return t.ch
}

func (t *mockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
