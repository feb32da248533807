package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewSchedule
// ---------------------------------------------------------------------------

func TestNewSchedule_InvalidInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Millisecond} {
		s, err := NewSchedule(d, nil)
		require.Error(t, err, "interval=%s", d)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrInvalidInterval)

		var se *ScheduleError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, d, se.Interval)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestNewSchedule_StartsStopped(t *testing.T) {
	s, err := NewSchedule(DefaultInterval, NewManualClock())
	require.NoError(t, err)

	assert.Equal(t, DefaultInterval, s.Interval())
	assert.False(t, s.Running())
	assert.Nil(t, s.C())
}

func TestNewSchedule_NilClockUsesRealClock(t *testing.T) {
	s, err := NewSchedule(time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, realClock{}, s.clock)
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func TestSchedule_StartDeliversTicks(t *testing.T) {
	clock := NewManualClock()
	s, err := NewSchedule(10*time.Millisecond, clock)
	require.NoError(t, err)

	s.Start()
	require.True(t, s.Running())

	clock.Tick(t0)

	select {
	case got := <-s.C():
		assert.True(t, got.Equal(t0))
	default:
		t.Fatal("expected a tick")
	}
}

func TestSchedule_StopSilencesPendingTick(t *testing.T) {
	clock := NewManualClock()
	s, err := NewSchedule(10*time.Millisecond, clock)
	require.NoError(t, err)

	s.Start()
	ticks := s.C()
	clock.Tick(t0)
	s.Stop()

	assert.False(t, s.Running())
	assert.Nil(t, s.C())

	select {
	case <-ticks:
		t.Fatal("no tick may be delivered after Stop returns")
	default:
	}

	clock.Tick(t0.Add(time.Second))
	assert.Equal(t, 0, clock.Running())
}

func TestSchedule_RestartReplacesTicker(t *testing.T) {
	clock := NewManualClock()
	s, err := NewSchedule(10*time.Millisecond, clock)
	require.NoError(t, err)

	s.Start()
	s.Start()

	assert.Equal(t, 1, clock.Running())
}

func TestSchedule_StopIdempotent(t *testing.T) {
	s, err := NewSchedule(time.Second, NewManualClock())
	require.NoError(t, err)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

// ---------------------------------------------------------------------------
// Clocks
// ---------------------------------------------------------------------------

func TestManualClock_CoalescesUnreadTicks(t *testing.T) {
	clock := NewManualClock()
	ticker := clock.NewTicker(time.Second)

	clock.Tick(t0)
	clock.Tick(t0.Add(time.Second))

	got := <-ticker.C()
	assert.True(t, got.Equal(t0))

	select {
	case <-ticker.C():
		t.Fatal("second tick should have been dropped")
	default:
	}
}

func TestManualTicker_Interval(t *testing.T) {
	clock := NewManualClock()
	ticker := clock.NewTicker(42 * time.Millisecond)

	mt, ok := ticker.(*ManualTicker)
	require.True(t, ok)
	assert.Equal(t, 42*time.Millisecond, mt.Interval())
}

func TestRealClock_Ticks(t *testing.T) {
	ticker := RealClock().NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(2 * time.Second):
		t.Fatal("real ticker did not fire")
	}
}
