// Package render turns a document on disk into a complete HTML page and
// hands it to a display sink.
//
// The pipeline reads the file, strips an optional YAML front matter block,
// converts the body with the converter registered for the document format,
// wraps the result in a page and publishes it. A failure at any stage is
// reported as a *RenderError and leaves the sink untouched.
//
// Built-in formats:
//   - markdown (blackfriday, with chroma highlighting of fenced code)
//   - text (escaped preformatted text)
package render
