package render

import (
	"bytes"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/russross/blackfriday/v2"
)

// DefaultTheme is the chroma style used for fenced code blocks.
const DefaultTheme = "github"

// Markdown converts Markdown with blackfriday. Fenced code blocks whose
// info string names a language known to chroma are syntax highlighted.
type Markdown struct {
	extensions blackfriday.Extensions
	flags      blackfriday.HTMLFlags
	style      *chroma.Style
	formatter  *chromahtml.Formatter
	css        string
}

// MarkdownOption configures a Markdown converter.
type MarkdownOption func(*Markdown)

// WithTheme selects the chroma style. Unknown names fall back to chroma's
// default style.
func WithTheme(name string) MarkdownOption {
	return func(m *Markdown) {
		if name != "" {
			m.style = styles.Get(name)
		}
	}
}

// WithExtensions overrides the blackfriday parser extensions.
func WithExtensions(ext blackfriday.Extensions) MarkdownOption {
	return func(m *Markdown) {
		m.extensions = ext
	}
}

// NewMarkdown creates a Markdown converter.
func NewMarkdown(opts ...MarkdownOption) *Markdown {
	m := &Markdown{
		extensions: blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs | blackfriday.Footnotes,
		flags:      blackfriday.CommonHTMLFlags,
		style:      styles.Get(DefaultTheme),
		formatter:  chromahtml.New(chromahtml.WithClasses(true)),
	}

	for _, opt := range opts {
		opt(m)
	}

	var css strings.Builder
	if err := m.formatter.WriteCSS(&css, m.style); err == nil {
		m.css = css.String()
	}

	return m
}

// Convert implements Converter.
func (m *Markdown) Convert(src []byte) ([]byte, error) {
	r := &highlightRenderer{
		HTMLRenderer: blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{Flags: m.flags}),
		style:        m.style,
		formatter:    m.formatter,
	}

	out := blackfriday.Run(src,
		blackfriday.WithExtensions(m.extensions),
		blackfriday.WithRenderer(r),
	)

	return out, nil
}

// CSS returns the stylesheet for highlighted code blocks.
func (m *Markdown) CSS() string { return m.css }

// Theme returns the name of the active chroma style.
func (m *Markdown) Theme() string { return m.style.Name }

// highlightRenderer delegates to blackfriday's HTML renderer except for
// fenced code blocks, which are tokenised and formatted by chroma.
type highlightRenderer struct {
	*blackfriday.HTMLRenderer
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func (r *highlightRenderer) RenderNode(w io.Writer, node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	if node.Type != blackfriday.CodeBlock {
		return r.HTMLRenderer.RenderNode(w, node, entering)
	}

	if out, ok := r.highlight(node); ok {
		_, _ = w.Write(out)
		return blackfriday.GoToNext
	}

	return r.HTMLRenderer.RenderNode(w, node, entering)
}

func (r *highlightRenderer) highlight(node *blackfriday.Node) ([]byte, bool) {
	lang := codeLanguage(node.Info)
	if lang == "" {
		return nil, false
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil, false
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, string(node.Literal))
	if err != nil {
		return nil, false
	}

	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return nil, false
	}

	buf.WriteByte('\n')

	return buf.Bytes(), true
}

// codeLanguage extracts the language from a fence info string such as
// "go" or "python {linenos=true}".
func codeLanguage(info []byte) string {
	fields := strings.Fields(string(info))
	if len(fields) == 0 {
		return ""
	}

	return strings.TrimPrefix(fields[0], ".")
}
