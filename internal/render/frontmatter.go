package render

import (
	"bytes"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FrontMatter holds the metadata of a leading YAML block delimited by
// "---" lines.
type FrontMatter struct {
	Title  string         `yaml:"title"`
	Params map[string]any `yaml:",inline"`
}

// SplitFrontMatter separates a leading front matter block from the body.
// Documents without an opening delimiter, or whose block is never closed,
// are returned unchanged with empty metadata. So are blocks that are not a
// YAML mapping: a leading "---" is also a markdown thematic break. A block
// that starts like a mapping but is not valid YAML is an error.
func SplitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	rest, ok := cutLine(src, "---")
	if !ok {
		return fm, src, nil
	}

	var block []byte

	for remaining := rest; len(remaining) > 0; {
		line, next := nextLine(remaining)

		trimmed := string(bytes.TrimRight(line, "\r\n"))
		if trimmed == "---" || trimmed == "..." {
			return decodeFrontMatter(src, block, next)
		}

		block = append(block, line...)
		remaining = next
	}

	return FrontMatter{}, src, nil
}

// mappingKey matches a line that opens a YAML mapping entry.
var mappingKey = regexp.MustCompile(`^[A-Za-z0-9_-]+:(\s|$)`)

func decodeFrontMatter(src, block, body []byte) (FrontMatter, []byte, error) {
	var (
		fm  FrontMatter
		doc yaml.Node
	)

	if err := yaml.Unmarshal(block, &doc); err != nil {
		if !looksLikeMapping(block) {
			return FrontMatter{}, src, nil
		}

		return FrontMatter{}, nil, fmt.Errorf("parsing front matter: %w", err)
	}

	// An empty block decodes to a zero node.
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return fm, body, nil
	}

	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return FrontMatter{}, src, nil
	}

	if err := doc.Decode(&fm); err != nil {
		return FrontMatter{}, nil, fmt.Errorf("parsing front matter: %w", err)
	}

	return fm, body, nil
}

// looksLikeMapping reports whether the first content line of block is a
// "key:" entry.
func looksLikeMapping(block []byte) bool {
	for rest := block; len(rest) > 0; {
		var line []byte

		line, rest = nextLine(rest)

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}

		return mappingKey.Match(trimmed)
	}

	return false
}

// cutLine strips a first line equal to want.
func cutLine(src []byte, want string) ([]byte, bool) {
	line, rest := nextLine(src)
	if string(bytes.TrimRight(line, "\r\n")) != want || !bytes.HasSuffix(line, []byte("\n")) {
		return src, false
	}

	return rest, true
}

// nextLine splits off the first line including its newline.
func nextLine(src []byte) (line, rest []byte) {
	if i := bytes.IndexByte(src, '\n'); i >= 0 {
		return src[:i+1], src[i+1:]
	}

	return src, nil
}
