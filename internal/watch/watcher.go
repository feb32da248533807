package watch

import (
	"errors"
	"time"

	"github.com/spf13/afero"
)

var errNotRegular = errors.New("not a regular file")

// Watcher tracks one target path and the modification time that was last
// rendered. It never renders anything itself and never starts timers: the
// owning session polls it on every tick.
//
// A Watcher is not safe for concurrent use.
type Watcher struct {
	fs afero.Fs

	path     string
	baseline time.Time

	// observed is the modification time seen by the latest successful stat
	// of the current target. It always precedes the read of any render
	// that follows it.
	observed time.Time
}

// NewWatcher creates a Watcher with no target. A nil fs selects the
// operating system filesystem.
func NewWatcher(fs afero.Fs) *Watcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Watcher{fs: fs}
}

// Target returns the watched path, or "" when nothing is watched.
func (w *Watcher) Target() string { return w.path }

// Baseline returns the modification time new polls are compared against.
// ok is false when no target is assigned.
func (w *Watcher) Baseline() (t time.Time, ok bool) {
	return w.baseline, w.path != ""
}

// SetTarget replaces the watch target. The previous target is always
// dropped. An empty path leaves the watcher without a target. Otherwise the
// new target is baselined at its current modification time, so the first
// Poll reports no change; a missing or unreadable path fails with a
// *TargetUnavailableError and no target is assigned.
func (w *Watcher) SetTarget(path string) error {
	w.path = ""
	w.baseline = time.Time{}
	w.observed = time.Time{}

	if path == "" {
		return nil
	}

	mtime, err := w.modTime(path)
	if err != nil {
		return err
	}

	w.path = path
	w.baseline = mtime
	w.observed = mtime

	return nil
}

// Poll reports whether the target was modified after the baseline. The
// comparison is strictly greater so an equal or earlier timestamp, as
// produced by truncation or clock skew, is not a change. Without a target
// Poll returns false and does not touch the filesystem.
func (w *Watcher) Poll() (bool, error) {
	if w.path == "" {
		return false, nil
	}

	mtime, err := w.modTime(w.path)
	if err != nil {
		return false, err
	}

	w.observed = mtime

	return mtime.After(w.baseline), nil
}

// MarkRendered advances the baseline after a successful render. The new
// baseline is the modification time seen by the most recent SetTarget or
// Poll, which was taken before the render read the file. A write landing
// between that stat and the read therefore still shows up as a change on
// the next poll instead of being absorbed into the baseline.
func (w *Watcher) MarkRendered() {
	if w.path == "" {
		return
	}

	w.baseline = w.observed
}

func (w *Watcher) modTime(path string) (time.Time, error) {
	// Stat first: opening a FIFO or device can block indefinitely.
	info, err := w.fs.Stat(path)
	if err != nil {
		return time.Time{}, &TargetUnavailableError{Path: path, Err: err}
	}

	if !info.Mode().IsRegular() {
		return time.Time{}, &TargetUnavailableError{Path: path, Err: errNotRegular}
	}

	// Open as well so that a file that lost its read permission is reported
	// as unavailable.
	f, err := w.fs.Open(path)
	if err != nil {
		return time.Time{}, &TargetUnavailableError{Path: path, Err: err}
	}

	if err := f.Close(); err != nil {
		return time.Time{}, &TargetUnavailableError{Path: path, Err: err}
	}

	return info.ModTime(), nil
}
