package watch

import "time"

// DefaultInterval is the poll cadence used when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Schedule owns the single recurring tick of a viewer session. The interval
// is fixed at construction; changing it means creating a new Schedule.
//
// A Schedule is not safe for concurrent use. It is meant to be started,
// stopped and drained from the one goroutine that handles its ticks, which
// is what guarantees that no tick is observed once Stop has returned.
type Schedule struct {
	interval time.Duration
	clock    Clock
	ticker   Ticker
}

// NewSchedule creates a stopped schedule. A zero or negative interval fails
// with a *ScheduleError; no default is substituted. A nil clock selects
// RealClock.
func NewSchedule(interval time.Duration, clock Clock) (*Schedule, error) {
	if interval <= 0 {
		return nil, &ScheduleError{Interval: interval}
	}

	if clock == nil {
		clock = RealClock()
	}

	return &Schedule{interval: interval, clock: clock}, nil
}

// Interval returns the configured cadence.
func (s *Schedule) Interval() time.Duration { return s.interval }

// Start (re)starts the tick. A running ticker is replaced so the first tick
// after Start arrives one full interval later.
func (s *Schedule) Start() {
	s.Stop()
	s.ticker = s.clock.NewTicker(s.interval)
}

// Stop halts the tick. It is a no-op on a stopped schedule.
func (s *Schedule) Stop() {
	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	s.ticker = nil
}

// Running reports whether the schedule is ticking.
func (s *Schedule) Running() bool { return s.ticker != nil }

// C returns the tick channel, or nil when the schedule is stopped. A nil
// channel blocks forever in a select, which keeps a stopped schedule silent.
func (s *Schedule) C() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}

	return s.ticker.C()
}
