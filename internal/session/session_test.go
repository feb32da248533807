package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docwatch/internal/display"
	"github.com/hupe1980/docwatch/internal/render"
	"github.com/hupe1980/docwatch/internal/watch"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	events []Event
}

func (r *recorder) Report(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}

	return out
}

type fixture struct {
	fs      afero.Fs
	clock   *watch.ManualClock
	sink    *display.Buffer
	rec     *recorder
	renders atomic.Int32
	session *Session
}

// failingMarkdown renders markdown but rejects documents containing BAD.
func failingMarkdown(f *fixture) render.Converter {
	md := render.NewMarkdown()

	return render.ConverterFunc(func(src []byte) ([]byte, error) {
		f.renders.Add(1)

		if bytes.Contains(src, []byte("BAD")) {
			return nil, errors.New("malformed document")
		}

		return md.Convert(src)
	})
}

func newFixture(t *testing.T, showDiff bool) *fixture {
	t.Helper()

	f := &fixture{
		fs:    afero.NewMemMapFs(),
		clock: watch.NewManualClock(),
		sink:  &display.Buffer{},
		rec:   &recorder{},
	}

	reg := render.NewRegistry()
	reg.Register(render.FormatMarkdown, failingMarkdown(f), ".md")

	pipeline := render.NewPipeline(f.sink, render.WithFs(f.fs), render.WithRegistry(reg))

	s, err := New(Options{
		Interval: 10 * time.Millisecond,
		Clock:    f.clock,
		Fs:       f.fs,
		Pipeline: pipeline,
		Reporter: f.rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ShowDiff: showDiff,
		Now:      func() time.Time { return t0 },
	})
	require.NoError(t, err)

	f.session = s

	return f
}

func (f *fixture) write(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()

	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
	require.NoError(t, f.fs.Chtimes(path, mtime, mtime))
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_ZeroIntervalFails(t *testing.T) {
	s, err := New(Options{Interval: 0, Pipeline: render.NewPipeline(nil)})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, watch.ErrInvalidInterval)

	var se *watch.ScheduleError
	assert.ErrorAs(t, err, &se)
}

func TestNew_RequiresPipeline(t *testing.T) {
	_, err := New(Options{Interval: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline is required")
}

func TestNew_StartsIdle(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, StateIdle, f.session.State())
	assert.False(t, f.session.Polling())
	assert.Empty(t, f.session.Target())
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_RendersAndStartsPolling(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)

	require.NoError(t, f.session.Open("/doc.md"))

	assert.Equal(t, StateWatching, f.session.State())
	assert.True(t, f.session.Polling())
	assert.Equal(t, 1, f.clock.Running())
	assert.Equal(t, "/doc.md", f.session.Target())
	assert.Contains(t, f.sink.Content(), "Hello")
	assert.Equal(t, []EventKind{EventLoaded}, f.rec.kinds())
	assert.Equal(t, StateWatching, f.rec.events[0].State)
	assert.Equal(t, "doc.md", f.rec.events[0].Title)
}

func TestOpen_MissingFile(t *testing.T) {
	f := newFixture(t, false)
	f.sink.SetContent("stale page")

	err := f.session.Open("/missing.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, watch.ErrTargetUnavailable)

	assert.Equal(t, StateIdle, f.session.State())
	assert.Empty(t, f.session.Target())
	assert.False(t, f.session.Polling())
	assert.Equal(t, 0, f.clock.Running())
	assert.Empty(t, f.sink.Content())
	assert.Equal(t, []EventKind{EventUnavailable}, f.rec.kinds())
}

func TestOpen_RenderFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/bad.md", "BAD", t0)

	err := f.session.Open("/bad.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrRender)

	assert.Equal(t, StateIdle, f.session.State())
	assert.Empty(t, f.session.Target())
	assert.False(t, f.session.Polling())
	assert.Empty(t, f.sink.Content())
	assert.Equal(t, []EventKind{EventRenderFailed}, f.rec.kinds())
}

func TestOpen_EmptyPathCancels(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	require.NoError(t, f.session.Open(""))

	assert.Equal(t, StateIdle, f.session.State())
	assert.Empty(t, f.session.Target())
	assert.False(t, f.session.Polling())
	assert.Equal(t, 0, f.clock.Running())
	assert.Empty(t, f.sink.Content())
	assert.Equal(t, []EventKind{EventLoaded, EventCleared}, f.rec.kinds())
}

func TestOpen_SwitchesTarget(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/a.md", "Alpha", t0)
	f.write(t, "/b.md", "Beta", t0)

	require.NoError(t, f.session.Open("/a.md"))
	require.NoError(t, f.session.Open("/b.md"))

	assert.Equal(t, "/b.md", f.session.Target())
	assert.Contains(t, f.sink.Content(), "Beta")
	assert.Equal(t, 1, f.clock.Running(), "the previous ticker must be stopped")

	// Writes to the abandoned target are ignored.
	f.write(t, "/a.md", "Changed", t0.Add(time.Second))
	f.session.Tick()
	assert.Contains(t, f.sink.Content(), "Beta")
}

func TestOpen_FailureAfterWatchingStopsPolling(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	require.Error(t, f.session.Open("/missing.md"))

	assert.False(t, f.session.Polling())
	assert.Empty(t, f.session.Target())
}

// ---------------------------------------------------------------------------
// Tick
// ---------------------------------------------------------------------------

func TestTick_NoWriteNoRerender(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	for i := 0; i < 3; i++ {
		f.session.Tick()
	}

	assert.Equal(t, 1, f.sink.Updates())
	assert.Equal(t, int32(1), f.renders.Load())
	assert.Equal(t, []EventKind{EventLoaded}, f.rec.kinds())
}

func TestTick_RewriteRendersExactlyOnce(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	t1 := t0.Add(time.Second)
	f.write(t, "/doc.md", "World", t1)

	f.session.Tick()
	f.session.Tick()

	assert.Equal(t, 2, f.sink.Updates())
	assert.Contains(t, f.sink.Content(), "World")
	assert.Equal(t, StateWatching, f.session.State())

	baseline, ok := f.session.watcher.Baseline()
	require.True(t, ok)
	assert.True(t, baseline.Equal(t1))
	assert.Equal(t, []EventKind{EventLoaded, EventReloaded}, f.rec.kinds())
}

func TestTick_WithoutTargetIsNoop(t *testing.T) {
	f := newFixture(t, false)

	f.session.Tick()

	assert.Equal(t, 0, f.sink.Updates())
	assert.Empty(t, f.rec.events)
}

func TestTick_RenderFailureKeepsDisplayAndRetries(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	good := f.sink.Content()

	f.write(t, "/doc.md", "BAD", t0.Add(time.Second))
	f.session.Tick()
	f.session.Tick()

	assert.Equal(t, good, f.sink.Content(), "display keeps the last good page")
	assert.Equal(t, StateWatching, f.session.State())
	assert.Equal(t, int32(3), f.renders.Load(), "each tick retries the render")

	baseline, _ := f.session.watcher.Baseline()
	assert.True(t, baseline.Equal(t0), "baseline must not advance on failure")
	assert.Equal(t, []EventKind{EventLoaded, EventRenderFailed}, f.rec.kinds(), "repeated failure reported once")

	f.write(t, "/doc.md", "Fixed", t0.Add(2*time.Second))
	f.session.Tick()

	assert.Contains(t, f.sink.Content(), "Fixed")
	assert.Equal(t, []EventKind{EventLoaded, EventRenderFailed, EventReloaded}, f.rec.kinds())
}

func TestTick_UnavailableTargetIsStaleNotChanged(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	good := f.sink.Content()

	require.NoError(t, f.fs.Remove("/doc.md"))
	f.session.Tick()
	f.session.Tick()

	assert.Equal(t, good, f.sink.Content())
	assert.Equal(t, StateWatching, f.session.State())
	assert.Equal(t, "/doc.md", f.session.Target())
	assert.True(t, f.session.Polling())
	assert.Equal(t, []EventKind{EventLoaded, EventUnavailable}, f.rec.kinds())
	assert.ErrorIs(t, f.rec.events[1].Err, watch.ErrTargetUnavailable)

	// Restored with the same timestamp: available again, nothing to render.
	f.write(t, "/doc.md", "Hello", t0)
	f.session.Tick()

	assert.Equal(t, []EventKind{EventLoaded, EventUnavailable, EventRecovered}, f.rec.kinds())
	assert.Equal(t, 1, f.sink.Updates())
}

func TestTick_UnavailableThenRewritten(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "/doc.md", "Hello", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	require.NoError(t, f.fs.Remove("/doc.md"))
	f.session.Tick()

	f.write(t, "/doc.md", "World", t0.Add(time.Second))
	f.session.Tick()

	assert.Contains(t, f.sink.Content(), "World")
	assert.Equal(t, []EventKind{EventLoaded, EventUnavailable, EventReloaded}, f.rec.kinds())
}

func TestTick_ShowDiff(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "/doc.md", "one\ntwo\n", t0)
	require.NoError(t, f.session.Open("/doc.md"))

	f.write(t, "/doc.md", "one\nthree\nfour\n", t0.Add(time.Second))
	f.session.Tick()

	require.Len(t, f.rec.events, 2)
	require.NotNil(t, f.rec.events[1].Changes)
	assert.Equal(t, Changes{Added: 2, Removed: 1}, *f.rec.events[1].Changes)
	assert.Equal(t, "OK (reloaded, +2/-1 lines)", f.rec.events[1].Message())
}

// ---------------------------------------------------------------------------
// Run / Request
// ---------------------------------------------------------------------------

type chanReporter chan Event

func (c chanReporter) Report(ev Event) { c <- ev }

func awaitEvent(t *testing.T, ch chanReporter) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func TestRun_DrivesTicksAndRequests(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := watch.NewManualClock()
	sink := &display.Buffer{}
	events := make(chanReporter, 16)

	require.NoError(t, afero.WriteFile(fs, "/doc.md", []byte("Hello"), 0o644))
	require.NoError(t, fs.Chtimes("/doc.md", t0, t0))

	s, err := New(Options{
		Interval: 10 * time.Millisecond,
		Clock:    clock,
		Fs:       fs,
		Pipeline: render.NewPipeline(sink, render.WithFs(fs)),
		Reporter: events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Request(ctx, "/doc.md"))
	assert.Equal(t, EventLoaded, awaitEvent(t, events).Kind)

	require.NoError(t, afero.WriteFile(fs, "/doc.md", []byte("World"), 0o644))
	require.NoError(t, fs.Chtimes("/doc.md", t0.Add(time.Second), t0.Add(time.Second)))
	clock.Tick(t0)

	assert.Equal(t, EventReloaded, awaitEvent(t, events).Kind)
	assert.Contains(t, sink.Content(), "World")

	err = s.Request(ctx, "/missing.md")
	assert.ErrorIs(t, err, watch.ErrTargetUnavailable)
	assert.Equal(t, EventUnavailable, awaitEvent(t, events).Kind)
	assert.Equal(t, 0, clock.Running(), "polling stays stopped after a failed open")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop in time")
	}

	assert.ErrorIs(t, s.Request(context.Background(), "/doc.md"), ErrClosed)
}

func TestRun_StopsScheduleOnReturn(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := watch.NewManualClock()

	require.NoError(t, afero.WriteFile(fs, "/doc.md", []byte("Hello"), 0o644))

	s, err := New(Options{
		Interval: time.Second,
		Clock:    clock,
		Fs:       fs,
		Pipeline: render.NewPipeline(nil, render.WithFs(fs)),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, s.Open("/doc.md"))
	require.Equal(t, 1, clock.Running())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 0, clock.Running())
}

func TestRequest_ContextCancelled(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.session.Request(ctx, "/doc.md"), context.Canceled)
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

func TestStatusWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewStatusWriter(&buf)

	w.Report(Event{Kind: EventLoaded, Path: "/docs/notes.md", Time: t0})
	w.Report(Event{Kind: EventRenderFailed, Path: "/docs/notes.md", Err: errors.New("boom"), Time: t0})
	w.Report(Event{Kind: EventCleared, Time: t0})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[12:00:00] notes.md → OK (loaded)", lines[0])
	assert.Equal(t, "[12:00:00] notes.md → ERROR: boom", lines[1])
	assert.Equal(t, "[12:00:00] (none) → cleared", lines[2])
}

func TestEvent_Message(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: EventLoaded}, "OK (loaded)"},
		{Event{Kind: EventReloaded}, "OK (reloaded)"},
		{Event{Kind: EventCleared}, "cleared"},
		{Event{Kind: EventRecovered}, "OK (available again)"},
		{Event{Kind: EventUnavailable, Err: errors.New("gone")}, "STALE: gone"},
		{Event{Kind: EventRenderFailed, Err: errors.New("bad")}, "ERROR: bad"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ev.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Message())
			assert.Equal(t, tt.ev.Err != nil, tt.ev.Failed())
		})
	}
}

func TestReporters_SkipsNil(t *testing.T) {
	var a, b recorder

	r := Reporters(&a, nil, ReporterFunc(b.Report))
	r.Report(Event{Kind: EventLoaded})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "reloading", StateReloading.String())
	assert.Equal(t, "unknown", State(42).String())
}
