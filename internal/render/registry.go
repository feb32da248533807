package render

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Built-in format names.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Registry maps format names to converters and file extensions to formats.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
	extensions map[string]string
	fallback   string
}

// NewRegistry creates an empty registry whose fallback format is markdown.
func NewRegistry() *Registry {
	return &Registry{
		converters: make(map[string]Converter),
		extensions: make(map[string]string),
		fallback:   FormatMarkdown,
	}
}

// Register adds a converter under name and associates it with the given
// file extensions (with leading dot). Existing entries are overwritten.
func (r *Registry) Register(name string, c Converter, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.converters[name] = c

	for _, ext := range exts {
		r.extensions[strings.ToLower(ext)] = name
	}
}

// Alias associates ext (with leading dot) with an already registered
// format.
func (r *Registry) Alias(ext, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.converters[name]; !ok {
		return fmt.Errorf("unknown format %q for extension %s (available: %s)", name, ext, r.availableLocked())
	}

	r.extensions[strings.ToLower(ext)] = name

	return nil
}

// Converter returns the converter for the given format, or an error if it
// is not registered.
func (r *Registry) Converter(name string) (Converter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.converters[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, r.availableLocked())
	}

	return c, nil
}

// FormatFor returns the format registered for the extension of path, or
// the fallback format.
func (r *Registry) FormatFor(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return name
	}

	return r.fallback
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatsLocked()
}

// Extensions returns the sorted list of registered file extensions without
// their leading dot.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}

	sort.Strings(exts)

	return exts
}

// AvailableFormats returns a comma-separated string of registered format names.
func (r *Registry) AvailableFormats() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.availableLocked()
}

func (r *Registry) formatsLocked() []string {
	names := make([]string, 0, len(r.converters))
	for name := range r.converters {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) availableLocked() string {
	formats := r.formatsLocked()
	if len(formats) == 0 {
		return "none"
	}

	return strings.Join(formats, ", ")
}

// DefaultRegistry returns a registry with the built-in formats: markdown
// for .md, .markdown, .mdown and .mkd files and text for .txt files.
func DefaultRegistry(opts ...MarkdownOption) *Registry {
	r := NewRegistry()

	r.Register(FormatMarkdown, NewMarkdown(opts...), ".md", ".markdown", ".mdown", ".mkd")
	r.Register(FormatText, PlainText{}, ".txt", ".text")

	return r
}
