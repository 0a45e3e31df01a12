package report

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser renders list slugs for humans. The list source uses
// hyphenated slugs ("hardcover-fiction"); artifacts show them as
// "Hardcover Fiction".
var titleCaser = cases.Title(language.AmericanEnglish)

// DisplayListName converts a list slug to its human-readable form.
func DisplayListName(slug string) string {
	return titleCaser.String(strings.ReplaceAll(slug, "-", " "))
}
