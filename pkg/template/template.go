// Package template renders alert titles and messages from event payloads.
package template

import (
	"regexp"
	"strings"

	"alertflow/pkg/condition"
)

var placeholder = regexp.MustCompile(`\{([\w.]+)\}`)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Interpolate replaces {path} placeholders with the escaped value found at path in data.
// Placeholders whose value is missing are left as written so broken templates stay visible.
// A null value renders as "null".
func Interpolate(tmpl string, data map[string]interface{}) string {
	if tmpl == "" || !strings.Contains(tmpl, "{") {
		return tmpl
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := match[1 : len(match)-1]
		v := condition.Extract(data, path)
		if v.IsMissing() {
			return match
		}
		return EscapeHTML(v.String())
	})
}

func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Placeholders lists the field paths referenced by tmpl, in order of appearance.
func Placeholders(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m[1])
	}
	return paths
}
