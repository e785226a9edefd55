package helper

import (
	"strings"
	"unicode"
)

// Underscore converts a CamelCase field name to snake_case for error keys.
// Acronym runs stay together, so ParentID becomes parent_id.
func Underscore(s string) string {
	runes := []rune(s)

	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		startsWord := i > 0 && !unicode.IsUpper(runes[i-1])
		endsAcronym := i > 0 && unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && !unicode.IsUpper(runes[i+1])
		if startsWord || endsAcronym {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
