package model

import (
	"fmt"
	"strings"
	"unicode"
)

// ISBNLength is the number of digits in a normalized ISBN-13.
const ISBNLength = 13

// Candidate is one book taken from a bestseller list, identified by a
// normalized ISBN-13. Candidates are immutable after creation and live
// only for the duration of a run.
type Candidate struct {
	// ISBN is the normalized 13-digit identifier. Always exactly 13
	// digits; construction fails otherwise.
	ISBN string

	// Title is the book title as reported by the list source.
	Title string

	// Author is the author as reported by the list source.
	Author string

	// List is the name of the source list (e.g. "hardcover-fiction").
	List string
}

// NewCandidate builds a Candidate from a raw identifier, normalizing it
// with NormalizeISBN. It returns an error when the identifier does not
// contain exactly 13 digits after stripping.
func NewCandidate(rawISBN, title, author, list string) (Candidate, error) {
	isbn, err := NormalizeISBN(rawISBN)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		ISBN:   isbn,
		Title:  title,
		Author: author,
		List:   list,
	}, nil
}

// NormalizeISBN strips every non-digit rune from raw and validates that
// exactly 13 digits remain. List sources report ISBNs with hyphens,
// spaces, and occasionally stray characters; the catalog search only
// accepts the bare digit form.
func NormalizeISBN(raw string) (string, error) {
	var b strings.Builder
	b.Grow(ISBNLength)
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != ISBNLength {
		return "", fmt.Errorf("invalid ISBN-13 %q: %d digits after normalization, want %d",
			raw, len(digits), ISBNLength)
	}
	return digits, nil
}
