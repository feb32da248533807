package render

import (
	"bytes"
	"html"
)

// Converter turns document source into an HTML fragment.
type Converter interface {
	Convert(src []byte) ([]byte, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(src []byte) ([]byte, error)

// Convert calls f(src).
func (f ConverterFunc) Convert(src []byte) ([]byte, error) { return f(src) }

// Stylesheet is implemented by converters whose output needs extra CSS in
// the page head.
type Stylesheet interface {
	CSS() string
}

// PlainText renders the source as escaped preformatted text.
type PlainText struct{}

// Convert implements Converter.
func (PlainText) Convert(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("<pre>")
	buf.WriteString(html.EscapeString(string(src)))
	buf.WriteString("</pre>\n")

	return buf.Bytes(), nil
}
