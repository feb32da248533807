package watch

import (
	"sync"
	"time"
)

// Clock creates tickers. It exists so the poll cadence can be driven
// deterministically in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock returns a Clock backed by time.NewTicker.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualClock is a Clock whose tickers only fire when Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	tickers []*ManualTicker
}

// NewManualClock creates a ManualClock with no tickers.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// NewTicker implements Clock.
func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &ManualTicker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)

	return t
}

// Tick fires every running ticker once. Like time.Ticker, a tick is dropped
// when the previous one has not been received yet.
func (c *ManualClock) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.tickers {
		t.fire(now)
	}
}

// Running returns the number of tickers that have not been stopped.
func (c *ManualClock) Running() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}

	return n
}

// ManualTicker is the Ticker handed out by ManualClock.
type ManualTicker struct {
	interval time.Duration
	mu       sync.Mutex
	stopped  bool
	ch       chan time.Time
}

// Interval returns the duration the ticker was created with.
func (t *ManualTicker) Interval() time.Duration { return t.interval }

// C implements Ticker.
func (t *ManualTicker) C() <-chan time.Time { return t.ch }

// Stop implements Ticker. A pending undelivered tick is discarded.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true

	select {
	case <-t.ch:
	default:
	}
}

func (t *ManualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	select {
	case t.ch <- now:
	default:
	}
}

func (t *ManualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}
