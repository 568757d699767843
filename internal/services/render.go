package services

import (
	"regexp"
	"sort"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} placeholders in a template body with bound
// values. Pure function, no side effects. Placeholders without a binding are
// replaced with the empty string and reported in missing (sorted, unique).
func Render(content string, bindings map[string]string) (rendered string, missing []string) {
	missingSet := map[string]struct{}{}
	rendered = placeholderRE.ReplaceAllStringFunc(content, func(m string) string {
		match := placeholderRE.FindStringSubmatch(m)
		if len(match) != 2 {
			return ""
		}
		if v, ok := bindings[match[1]]; ok {
			return v
		}
		missingSet[match[1]] = struct{}{}
		return ""
	})
	missing = make([]string, 0, len(missingSet))
	for k := range missingSet {
		missing = append(missing, k)
	}
	sort.Strings(missing)
	return rendered, missing
}

// Placeholders lists the distinct placeholder keys in a template body,
// sorted.
func Placeholders(content string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderRE.FindAllStringSubmatch(content, -1) {
		if len(m) == 2 {
			seen[m[1]] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
