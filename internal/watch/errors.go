package watch

import (
	"errors"
	"fmt"
	"time"
)

// ErrTargetUnavailable is matched by every *TargetUnavailableError.
var ErrTargetUnavailable = errors.New("watch target unavailable")

// ErrInvalidInterval is matched by every *ScheduleError.
var ErrInvalidInterval = errors.New("invalid poll interval")

// TargetUnavailableError reports that the watch target does not exist or
// cannot be read.
type TargetUnavailableError struct {
	Path string
	Err  error
}

func (e *TargetUnavailableError) Error() string {
	return fmt.Sprintf("watch target %q unavailable: %v", e.Path, e.Err)
}

func (e *TargetUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTargetUnavailable.
func (e *TargetUnavailableError) Is(target error) bool { return target == ErrTargetUnavailable }

// ScheduleError reports a poll interval that is zero or negative.
type ScheduleError struct {
	Interval time.Duration
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid poll interval %s: must be positive", e.Interval)
}

// Is reports whether target is ErrInvalidInterval.
func (e *ScheduleError) Is(target error) bool { return target == ErrInvalidInterval }
