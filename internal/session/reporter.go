package session

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// EventKind classifies a session event.
type EventKind string

// Event kinds.
const (
	EventLoaded       EventKind = "loaded"
	EventReloaded     EventKind = "reloaded"
	EventCleared      EventKind = "cleared"
	EventRenderFailed EventKind = "render-failed"
	EventUnavailable  EventKind = "unavailable"
	EventRecovered    EventKind = "recovered"
)

// Event is reported whenever the displayed document or the health of the
// watch changes.
type Event struct {
	Kind  EventKind
	State State
	Path  string
	Title string
	Err   error
	Time  time.Time
	// Changes is set on reloads when change summaries are enabled.
	Changes *Changes
}

// Failed reports whether the event describes a problem.
func (e Event) Failed() bool { return e.Err != nil }

// Name returns the base name of the event's path.
func (e Event) Name() string {
	if e.Path == "" {
		return ""
	}

	return filepath.Base(e.Path)
}

// Message returns a one-line human readable description.
func (e Event) Message() string {
	switch e.Kind {
	case EventLoaded:
		return "OK (loaded)"
	case EventReloaded:
		if e.Changes != nil {
			return fmt.Sprintf("OK (reloaded, %s)", e.Changes)
		}

		return "OK (reloaded)"
	case EventCleared:
		return "cleared"
	case EventRecovered:
		return "OK (available again)"
	case EventUnavailable:
		return fmt.Sprintf("STALE: %v", e.Err)
	default:
		return fmt.Sprintf("ERROR: %v", e.Err)
	}
}

// Reporter receives session events. Report is called on the session
// goroutine and must not block for long.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(ev).
func (f ReporterFunc) Report(ev Event) { f(ev) }

type reporters []Reporter

// Reporters combines several reporters. Nil entries are skipped.
func Reporters(rs ...Reporter) Reporter {
	out := make(reporters, 0, len(rs))

	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}

	return out
}

func (rs reporters) Report(ev Event) {
	for _, r := range rs {
		r.Report(ev)
	}
}

// StatusWriter prints one status line per event:
//
//	[15:04:05] notes.md → OK (reloaded)
type StatusWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStatusWriter creates a StatusWriter writing to w.
func NewStatusWriter(w io.Writer) *StatusWriter {
	return &StatusWriter{out: w}
}

// Report implements Reporter.
func (sw *StatusWriter) Report(ev Event) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	name := ev.Name()
	if name == "" {
		name = "(none)"
	}

	fmt.Fprintf(sw.out, "[%s] %s → %s\n", ev.Time.Format("15:04:05"), name, ev.Message())
}
