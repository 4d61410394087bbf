package bindable

import (
	"strconv"
	"strings"
)

// ExcludeMarked rewrites selector so that it no longer matches elements
// whose boundAttr equals "true" or that carry noBindAttr. Every part of a
// selector list gets the filter, otherwise ".a, .b" would keep matching
// bound ".a" elements through its first part.
func ExcludeMarked(selector, boundAttr, noBindAttr string) string {
	filter := ":not([" + boundAttr + "=" + strconv.Quote(BoundValue) + "]):not([" + noBindAttr + "])"

	parts := SplitSelectorList(selector)
	for i, p := range parts {
		parts[i] = p + filter
	}
	return strings.Join(parts, ", ")
}

// SplitSelectorList splits a selector list on its top-level commas. Commas
// nested in parentheses, attribute brackets or quoted strings are kept.
// Empty parts are dropped.
func SplitSelectorList(selector string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	runes := []rune(selector)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			i++ // escaped character
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			add(string(runes[start:i]))
			start = i + 1
		}
	}
	add(string(runes[start:]))
	return parts
}
