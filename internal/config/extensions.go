package config

import (
	"fmt"
	"regexp"
	"sort"
)

// extensionPattern matches a file extension written without its leading
// dot. Viper treats dots in keys as nesting, so ".mdx" cannot be a key.
var extensionPattern = regexp.MustCompile(`^[A-Za-z0-9_+-]+$`)

// ValidateExtensions checks an extension to format mapping such as
//
//	extensions:
//	  mdx: markdown
//	  log: text
//
// Whether the format exists is only known once converters are registered.
func ValidateExtensions(exts map[string]string) error {
	for _, ext := range sortedKeys(exts) {
		if !extensionPattern.MatchString(ext) {
			return fmt.Errorf("extensions[%s]: invalid extension (letters, digits, _ + - only, without the dot)", ext)
		}

		if exts[ext] == "" {
			return fmt.Errorf("extensions[%s]: format must not be empty", ext)
		}
	}

	return nil
}

// ExtensionAliases returns the mapping with a leading dot added to every
// extension, in sorted order of extension.
func ExtensionAliases(exts map[string]string) [][2]string {
	out := make([][2]string, 0, len(exts))

	for _, ext := range sortedKeys(exts) {
		out = append(out, [2]string{"." + ext, exts[ext]})
	}

	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
