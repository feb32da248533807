package display

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives rendered HTML. SetContent replaces whatever the sink showed
// before; an empty string clears it.
type Sink interface {
	SetContent(html string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(html string)

// SetContent calls f(html).
func (f SinkFunc) SetContent(html string) { f(html) }

// WriterSink writes every page to an io.Writer.
type WriterSink struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

// NewWriterSink creates a sink that writes to w. If w is nil, os.Stdout is
// used.
func NewWriterSink(w io.Writer) *WriterSink {
	if w == nil {
		w = os.Stdout
	}

	return &WriterSink{out: w, logger: slog.Default()}
}

// SetContent writes html followed by a newline. Write failures are logged.
func (ws *WriterSink) SetContent(html string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if _, err := io.WriteString(ws.out, html+"\n"); err != nil {
		ws.logger.Error("writing page", slog.String("error", err.Error()))
	}
}

// FileSink keeps a file on disk in sync with the displayed page, creating
// parent directories as needed.
type FileSink struct {
	mu     sync.Mutex
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileSinkOption {
	return func(fs *FileSink) {
		fs.perm = perm
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) FileSinkOption {
	return func(fs *FileSink) {
		fs.logger = logger
	}
}

// NewFileSink creates a sink that writes pages to path.
func NewFileSink(path string, opts ...FileSinkOption) *FileSink {
	fs := &FileSink{
		path:   path,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(fs)
	}

	return fs
}

// SetContent replaces the file. Failures are logged and leave the previous
// file untouched.
func (fs *FileSink) SetContent(html string) {
	if err := fs.Write(html); err != nil {
		fs.logger.Error("updating output file",
			slog.String("path", fs.path),
			slog.String("error", err.Error()),
		)
	}
}

// Write replaces the file with html and returns any failure.
func (fs *FileSink) Write(html string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.write([]byte(html))
}

// write stages data in a temporary file next to the target and renames it
// into place.
func (fs *FileSink) write(data []byte) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fs.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing temporary file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Chmod(tmpName, fs.perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", fs.path, err)
	}

	return nil
}

// Path returns the output file path.
func (fs *FileSink) Path() string {
	return fs.path
}

// Buffer keeps the most recent page in memory.
type Buffer struct {
	mu      sync.Mutex
	content string
	updates int
}

// SetContent stores html.
func (b *Buffer) SetContent(html string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.content = html
	b.updates++
}

// Content returns the current page.
func (b *Buffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.content
}

// Updates returns how many times SetContent was called.
func (b *Buffer) Updates() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.updates
}

type multi []Sink

// Multi returns a sink that forwards every page to each of sinks in order.
// Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	m := make(multi, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}

	return m
}

func (m multi) SetContent(html string) {
	for _, s := range m {
		s.SetContent(html)
	}
}
