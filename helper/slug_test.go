package helper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugifyBasicTitle(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello World"))
}

func TestSlugifyFoldsAccents(t *testing.T) {
	assert.Equal(t, "publicacao-com-acentuacao", Slugify("Publicação com acentuação"))
}

func TestSlugifySubstitutionTable(t *testing.T) {
	assert.Equal(t, "100-por-cento", Slugify("100%"))
	assert.Equal(t, "voce-e-eu", Slugify("você & eu"))
	assert.Equal(t, "a-b-c", Slugify("a.b/c"))
	assert.Equal(t, "user-example-com", Slugify("user@example.com"))
}

func TestSlugifyNoRawPunctuationSurvives(t *testing.T) {
	slug := Slugify("What 10% of devs <really> think, today & tomorrow... a_b/c")
	for r := range slugSubstitutions {
		assert.NotContains(t, slug, string(r))
	}
	assert.False(t, strings.Contains(slug, " "))
	assert.False(t, strings.Contains(slug, "--"))
}

func TestSlugifyTruncatesLongTitles(t *testing.T) {
	slug := Slugify(strings.Repeat("long title ", 60))
	assert.LessOrEqual(t, len(slug), 255)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestSlugifyEmptyAndUnusableTitles(t *testing.T) {
	assert.Equal(t, "", Slugify(""))
	assert.Equal(t, "", Slugify("!!! ???"))
}
