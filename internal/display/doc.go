// Package display provides the sinks that receive rendered HTML.
//
// A sink accepts whole pages only. Every implementation replaces its
// previous content in one step so that a reader never observes a page
// that is half old and half new:
//
//   - [WriterSink] writes each page to an io.Writer such as stdout.
//   - [FileSink] replaces a file atomically via a temporary file and rename.
//   - [Buffer] keeps the latest page in memory.
//   - [Multi] fans a page out to several sinks.
package display
