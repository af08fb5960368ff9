// Package prompt renders the text submitted to the assistant from a template
// and the answers collected by the automation platform.
package prompt

import (
	"regexp"
	"strings"
)

// DefaultPlaceholder replaces keys the mapping does not provide.
const DefaultPlaceholder = "(not provided)"

// DefaultTemplate passes the resolved text through unchanged.
const DefaultTemplate = "{{text}}"

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render replaces every {{key}} in tmpl with mapping[key]. Keys absent from the
// mapping, or present with only whitespace, become placeholder.
func Render(tmpl string, mapping map[string]string, placeholder string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := mapping[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return placeholder
	})
}

// Keys lists the distinct keys referenced by tmpl in order of first use.
func Keys(tmpl string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}
