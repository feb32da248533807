package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/hupe1980/docwatch/internal/display"
)

// ErrRender is matched by every *RenderError.
var ErrRender = errors.New("render failed")

// Stage names the pipeline step that failed.
type Stage string

// Pipeline stages.
const (
	StageRead        Stage = "read"
	StageFrontMatter Stage = "front-matter"
	StageConvert     Stage = "convert"
)

// RenderError describes a failed render.
type RenderError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRender.
func (e *RenderError) Is(target error) bool { return target == ErrRender }

// Result is a successfully rendered document.
type Result struct {
	Path   string
	Format string
	Title  string
	// Source is the raw file content the page was rendered from.
	Source []byte
	HTML   string
	// Digest is the xxhash of HTML.
	Digest uint64
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .CSS}}
<style>
{{.CSS}}
</style>
{{- end}}
</head>
<body>
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Title string
	CSS   template.CSS
	Body  template.HTML
}

// Pipeline reads, converts and displays documents. It holds no timing or
// change detection state.
type Pipeline struct {
	fs       afero.Fs
	registry *Registry
	format   string
	sink     display.Sink
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem documents are read from.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithRegistry sets the converter registry.
func WithRegistry(r *Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithFormat forces a format instead of choosing one by file extension.
func WithFormat(name string) Option {
	return func(p *Pipeline) {
		p.format = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline that publishes to sink. A nil sink
// discards pages.
func NewPipeline(sink display.Sink, opts ...Option) *Pipeline {
	if sink == nil {
		sink = display.Multi()
	}

	p := &Pipeline{
		fs:     afero.NewOsFs(),
		sink:   sink,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.registry == nil {
		p.registry = DefaultRegistry()
	}

	return p
}

// RenderAndDisplay renders path and, only on success, replaces the sink
// content with the page.
func (p *Pipeline) RenderAndDisplay(path string) (*Result, error) {
	res, err := p.Render(path)
	if err != nil {
		return nil, err
	}

	p.sink.SetContent(res.HTML)

	return res, nil
}

// ClearDisplay empties the sink.
func (p *Pipeline) ClearDisplay() {
	p.sink.SetContent("")
}

// Render reads and converts path without touching the sink.
func (p *Pipeline) Render(path string) (*Result, error) {
	src, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, &RenderError{Path: path, Stage: StageRead, Err: err}
	}

	fm, body, err := SplitFrontMatter(src)
	if err != nil {
		return nil, &RenderError{Path: path, Stage: StageFrontMatter, Err: err}
	}

	format := p.format
	if format == "" {
		format = p.registry.FormatFor(path)
	}

	conv, err := p.registry.Converter(format)
	if err != nil {
		return nil, &RenderError{Path: path, Stage: StageConvert, Err: err}
	}

	fragment, err := convert(conv, body)
	if err != nil {
		return nil, &RenderError{Path: path, Stage: StageConvert, Err: err}
	}

	title := fm.Title
	if title == "" {
		title = filepath.Base(path)
	}

	data := pageData{Title: title, Body: template.HTML(fragment)} //nolint:gosec // converter output

	if ss, ok := conv.(Stylesheet); ok {
		data.CSS = template.CSS(ss.CSS()) //nolint:gosec // generated by chroma
	}

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, data); err != nil {
		return nil, &RenderError{Path: path, Stage: StageConvert, Err: err}
	}

	p.logger.Debug("document rendered",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("bytes", page.Len()),
	)

	return &Result{
		Path:   path,
		Format: format,
		Title:  title,
		Source: src,
		HTML:   page.String(),
		Digest: xxhash.Sum64String(page.String()),
	}, nil
}

// convert runs c and turns a panic inside it into an error.
func convert(c Converter, src []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panicked: %v", r)
		}
	}()

	return c.Convert(src)
}
