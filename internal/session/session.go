package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/hupe1980/docwatch/internal/render"
	"github.com/hupe1980/docwatch/internal/watch"
)

// ErrClosed is returned by Request once Run has returned.
var ErrClosed = errors.New("session closed")

// Renderer is the render pipeline as seen by a session.
type Renderer interface {
	RenderAndDisplay(path string) (*render.Result, error)
	ClearDisplay()
}

// Options configures a Session.
type Options struct {
	// Interval is the poll cadence. It must be positive.
	Interval time.Duration

	// Clock drives the schedule. Defaults to watch.RealClock().
	Clock watch.Clock

	// Fs is the filesystem the watcher stats. Defaults to the OS filesystem.
	Fs afero.Fs

	// Pipeline renders and displays documents. Required.
	Pipeline Renderer

	// Reporter receives session events. Optional.
	Reporter Reporter

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// ShowDiff attaches a line change summary to reload events.
	ShowDiff bool

	// Now returns the event timestamp. Defaults to time.Now.
	Now func() time.Time
}

type openRequest struct {
	path   string
	result chan error
}

// Session is one viewer session: one watch target, one schedule, one
// display.
//
// Open, Tick and State must only be called from the goroutine that owns the
// session, which is the goroutine running Run once Run has started.
type Session struct {
	watcher  *watch.Watcher
	schedule *watch.Schedule
	pipeline Renderer
	reporter Reporter
	logger   *slog.Logger
	showDiff bool
	now      func() time.Time

	state      State
	lastSource []byte
	failure    string

	requests chan openRequest
	done     chan struct{}
}

// New creates an idle session. An invalid interval fails with a
// *watch.ScheduleError.
func New(opts Options) (*Session, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("session: pipeline is required")
	}

	schedule, err := watch.NewSchedule(opts.Interval, opts.Clock)
	if err != nil {
		return nil, err
	}

	if opts.Reporter == nil {
		opts.Reporter = Reporters()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		watcher:  watch.NewWatcher(opts.Fs),
		schedule: schedule,
		pipeline: opts.Pipeline,
		reporter: opts.Reporter,
		logger:   opts.Logger,
		showDiff: opts.ShowDiff,
		now:      opts.Now,
		state:    StateIdle,
		requests: make(chan openRequest),
		done:     make(chan struct{}),
	}, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Target returns the watched path, or "" when idle.
func (s *Session) Target() string { return s.watcher.Target() }

// Polling reports whether the schedule is running.
func (s *Session) Polling() bool { return s.schedule.Running() }

// Open abandons the current document and loads path. An empty path cancels:
// the display is cleared and the session becomes idle. A path that cannot
// be watched fails with a *watch.TargetUnavailableError and a document that
// cannot be rendered with a *render.RenderError; in both cases the display
// is cleared, the session is idle and polling stays stopped.
func (s *Session) Open(path string) error {
	s.schedule.Stop()
	s.lastSource = nil
	s.failure = ""

	if path == "" {
		_ = s.watcher.SetTarget("")
		s.pipeline.ClearDisplay()
		s.setState(StateIdle)
		s.report(Event{Kind: EventCleared})

		return nil
	}

	s.setState(StateLoading)

	if err := s.watcher.SetTarget(path); err != nil {
		s.abandon(Event{Kind: EventUnavailable, Path: path, Err: err})
		return err
	}

	res, err := s.pipeline.RenderAndDisplay(path)
	if err != nil {
		_ = s.watcher.SetTarget("")
		s.abandon(Event{Kind: EventRenderFailed, Path: path, Err: err})

		return err
	}

	s.watcher.MarkRendered()
	s.lastSource = res.Source
	s.schedule.Start()
	s.setState(StateWatching)
	s.report(Event{Kind: EventLoaded, Path: path, Title: res.Title})

	return nil
}

// Tick runs one poll. Without a target it does nothing. A target that
// cannot be stat'ed counts as unchanged for this tick and is reported as
// stale. A failed reload keeps the baseline, so the next tick retries.
func (s *Session) Tick() {
	path := s.watcher.Target()
	if path == "" {
		return
	}

	changed, err := s.watcher.Poll()
	if err != nil {
		s.fail(Event{Kind: EventUnavailable, Path: path, Err: err})
		return
	}

	if !changed {
		if s.failure == failureKey(EventUnavailable, nil) {
			s.failure = ""
			s.report(Event{Kind: EventRecovered, Path: path})
		}

		return
	}

	s.setState(StateReloading)

	res, err := s.pipeline.RenderAndDisplay(path)
	if err != nil {
		s.setState(StateWatching)
		s.fail(Event{Kind: EventRenderFailed, Path: path, Err: err})

		return
	}

	s.watcher.MarkRendered()
	s.failure = ""

	ev := Event{Kind: EventReloaded, Path: path, Title: res.Title}

	if s.showDiff {
		c := Summarize(s.lastSource, res.Source)
		ev.Changes = &c
	}

	s.lastSource = res.Source
	s.setState(StateWatching)
	s.report(ev)
}

// Run processes ticks and open requests until ctx is cancelled. The
// schedule is stopped on return.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.schedule.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.schedule.C():
			// A tick and cancellation may be ready together; cancellation wins.
			if ctx.Err() != nil {
				return nil
			}

			s.Tick()

		case req := <-s.requests:
			req.result <- s.Open(req.path)
		}
	}
}

// Request asks the goroutine running Run to open path and waits for the
// outcome. It is safe for concurrent use.
func (s *Session) Request(ctx context.Context, path string) error {
	req := openRequest{path: path, result: make(chan error, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon returns to idle after a failed load.
func (s *Session) abandon(ev Event) {
	s.pipeline.ClearDisplay()
	s.setState(StateIdle)
	s.report(ev)
}

// fail reports a failure unless the identical failure was already reported
// on an earlier tick.
func (s *Session) fail(ev Event) {
	key := failureKey(ev.Kind, ev.Err)
	if key == s.failure {
		s.logger.Debug("failure persists", slog.String("path", ev.Path), slog.String("kind", string(ev.Kind)))
		return
	}

	s.failure = key
	s.report(ev)
}

func failureKey(kind EventKind, err error) string {
	if kind == EventUnavailable {
		// The error text of a stat failure can vary between ticks.
		return string(kind)
	}

	if err == nil {
		return string(kind)
	}

	return string(kind) + ": " + err.Error()
}

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}

	s.logger.Debug("session state changed",
		slog.String("from", s.state.String()),
		slog.String("to", next.String()),
	)

	s.state = next
}

func (s *Session) report(ev Event) {
	ev.State = s.state
	ev.Time = s.now()

	attrs := []any{slog.String("event", string(ev.Kind))}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}

	if ev.Changes != nil {
		attrs = append(attrs, slog.String("changes", ev.Changes.String()))
	}

	if ev.Err != nil {
		s.logger.Warn("document problem", append(attrs, slog.String("error", ev.Err.Error()))...)
	} else {
		s.logger.Info("document "+string(ev.Kind), attrs...)
	}

	s.reporter.Report(ev)
}
