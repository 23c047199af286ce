package templates

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders look like {{client_name}} in template content.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// ExtractPlaceholders returns the distinct placeholder names referenced in
// content, in first-appearance order.
func ExtractPlaceholders(content string) []string {
	matches := placeholderRe.FindAllStringSubmatch(content, -1)
	seen := map[string]bool{}
	names := []string{}
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes every placeholder with its value. All placeholders
// referenced in content must be present in values; the returned error names
// the first missing one.
func Render(content string, values map[string]string) (string, error) {
	var missing string
	rendered := placeholderRe.ReplaceAllStringFunc(content, func(token string) string {
		name := placeholderRe.FindStringSubmatch(token)[1]
		value, ok := values[name]
		if !ok || strings.TrimSpace(value) == "" {
			if missing == "" {
				missing = name
			}
			return token
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("placeholder %q has no value", missing)
	}
	return rendered, nil
}

// UnresolvedPlaceholders reports placeholder tokens still present in a
// resolved snapshot. Send-for-signature refuses contracts where this is
// non-empty.
func UnresolvedPlaceholders(content string) []string {
	return ExtractPlaceholders(content)
}
