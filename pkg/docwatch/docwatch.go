// Package docwatch provides a public Go API for rendering markup documents
// to HTML and keeping the rendered page in sync with the file on disk.
//
// This package exposes the docwatch render pipeline and watch session as a
// library, allowing programmatic use without the CLI.
//
// Rendering once:
//
//	page, err := docwatch.Render("README.md", docwatch.WithTheme("monokai"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(page.HTML)
//
// Watching until ctx is cancelled:
//
//	err := docwatch.Watch(ctx, "README.md", func(html string) {
//	    os.WriteFile("README.html", []byte(html), 0o644)
//	}, docwatch.WithInterval(time.Second))
package docwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/hupe1980/docwatch/internal/display"
	"github.com/hupe1980/docwatch/internal/render"
	"github.com/hupe1980/docwatch/internal/session"
	"github.com/hupe1980/docwatch/internal/watch"
)

// Errors that callers can test for with errors.Is.
var (
	ErrTargetUnavailable = watch.ErrTargetUnavailable
	ErrRender            = render.ErrRender
	ErrInvalidInterval   = watch.ErrInvalidInterval
)

// DefaultInterval is the poll interval used by Watch unless WithInterval
// is given.
const DefaultInterval = watch.DefaultInterval

// Option configures Render and Watch.
type Option func(*options)

type options struct {
	format   string
	theme    string
	interval time.Duration
	fs       afero.Fs
	logger   *slog.Logger
	status   func(Status)
}

// WithFormat forces a markup format instead of detecting it from the file
// extension.
func WithFormat(name string) Option { return func(o *options) { o.format = name } }

// WithTheme sets the syntax highlighting theme for code blocks.
func WithTheme(name string) Option { return func(o *options) { o.theme = name } }

// WithInterval sets the poll interval used by Watch.
func WithInterval(d time.Duration) Option { return func(o *options) { o.interval = d } }

// WithFs reads documents from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option { return func(o *options) { o.logger = logger } }

// WithStatus registers a callback for Watch status changes.
func WithStatus(fn func(Status)) Option { return func(o *options) { o.status = fn } }

// Page is a rendered document.
type Page struct {
	Path   string
	Format string
	Title  string
	HTML   string
}

// Status describes a change in what Watch displays or in the health of
// the watched file.
type Status struct {
	Event   string
	Path    string
	Message string
	OK      bool
	Time    time.Time
}

// Render converts the document at path to a standalone HTML page.
func Render(path string, opts ...Option) (*Page, error) {
	if path == "" {
		return nil, errors.New("document path must not be empty")
	}

	o := newOptions(opts)

	pipeline, err := o.pipeline(nil)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Render(path)
	if err != nil {
		return nil, err
	}

	return &Page{Path: res.Path, Format: res.Format, Title: res.Title, HTML: res.HTML}, nil
}

// Watch renders path, passes the page to sink and re-renders it whenever
// the file's modification time moves forward, until ctx is cancelled. An
// empty page is passed when the display is cleared. Watch fails right away
// when the first render fails.
func Watch(ctx context.Context, path string, sink func(html string), opts ...Option) error {
	if path == "" {
		return errors.New("document path must not be empty")
	}

	if sink == nil {
		sink = func(string) {}
	}

	o := newOptions(opts)

	pipeline, err := o.pipeline(display.SinkFunc(sink))
	if err != nil {
		return err
	}

	var reporter session.Reporter
	if o.status != nil {
		reporter = session.ReporterFunc(func(ev session.Event) {
			o.status(Status{
				Event:   string(ev.Kind),
				Path:    ev.Path,
				Message: ev.Message(),
				OK:      !ev.Failed(),
				Time:    ev.Time,
			})
		})
	}

	sess, err := session.New(session.Options{
		Interval: o.interval,
		Fs:       o.fs,
		Pipeline: pipeline,
		Reporter: reporter,
		Logger:   o.logger,
	})
	if err != nil {
		return err
	}

	if err := sess.Open(path); err != nil {
		return err
	}

	return sess.Run(ctx)
}

func newOptions(opts []Option) *options {
	o := &options{
		theme:    render.DefaultTheme,
		interval: DefaultInterval,
		fs:       afero.NewOsFs(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *options) pipeline(sink display.Sink) (*render.Pipeline, error) {
	registry := render.DefaultRegistry(render.WithTheme(o.theme))

	if o.format != "" {
		if _, err := registry.Converter(o.format); err != nil {
			return nil, err
		}
	}

	return render.NewPipeline(sink,
		render.WithFs(o.fs),
		render.WithRegistry(registry),
		render.WithFormat(o.format),
		render.WithLogger(o.logger),
	), nil
}
