package helper

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 255

// slugSubstitutions spells out or dashes away the punctuation that would
// otherwise be lost entirely.
var slugSubstitutions = map[rune]string{
	'%': " por cento",
	'&': " e ",
	'>': "-",
	'<': "-",
	'@': "-",
	'.': "-",
	',': "-",
	'_': "-",
	'/': "-",
}

var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a title into a URL-safe slug: accents folded to ASCII,
// punctuation substituted, everything else lowered and collapsed into
// hyphen-separated runs, truncated to 255 characters. Returns "" when the
// title carries nothing usable; callers fall back to a random identifier.
func Slugify(title string) string {
	if title == "" {
		return ""
	}

	folded, _, err := transform.String(asciiFolder, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if replacement, ok := slugSubstitutions[r]; ok {
			b.WriteString(replacement)
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	return slug
}
