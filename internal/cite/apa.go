// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite formats APA citations and assigns evidence citations to
// answer sentences.
package cite

import (
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxNamedAuthors is the author count above which the citation collapses to
// "First, et al.".
const maxNamedAuthors = 3

// ToAPA renders an article as an APA citation string. It is a pure function:
// identical input always yields byte-identical output.
//
// Shape: "{authors} ({year}). {title}. {journal}." with " doi:{doi}" appended
// only when the DOI is non-empty. Missing years render as "n.d.".
func ToAPA(a types.Article) string {
	var b strings.Builder

	authors := formatAuthorList(a.Authors)
	if authors != "" {
		b.WriteString(authors)
		b.WriteString(" ")
	}

	year := a.Year
	if year == "" {
		year = "n.d."
	}
	b.WriteString("(")
	b.WriteString(year)
	b.WriteString("). ")

	b.WriteString(terminated(strings.TrimSpace(a.Title)))

	if a.Journal != "" {
		b.WriteString(" ")
		b.WriteString(terminated(strings.TrimSpace(a.Journal)))
	}

	if a.DOI != "" {
		b.WriteString(" doi:")
		b.WriteString(a.DOI)
	}
	return b.String()
}

// formatAuthorList renders up to three authors joined with ", " and an
// ampersand before the last; longer lists collapse to "First, et al.".
func formatAuthorList(authors []string) string {
	named := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := formatAuthorName(a); n != "" {
			named = append(named, n)
		}
	}

	switch {
	case len(named) == 0:
		return ""
	case len(named) == 1:
		return named[0]
	case len(named) <= maxNamedAuthors:
		return strings.Join(named[:len(named)-1], ", ") + ", & " + named[len(named)-1]
	default:
		return named[0] + ", et al."
	}
}

// formatAuthorName normalizes one author to "Last, F." form. Names already
// containing a comma are trusted as pre-formatted. "Smith J" (PubMed order)
// becomes "Smith, J."; "Ana Torres" (given-name-first order) becomes
// "Torres, A.".
func formatAuthorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.Contains(name, ",") {
		return name
	}

	fields := strings.Fields(name)
	if len(fields) == 1 {
		return fields[0]
	}

	last := fields[len(fields)-1]
	if isInitials(last) {
		// PubMed order: family name first, initials last.
		family := strings.Join(fields[:len(fields)-1], " ")
		return family + ", " + initialDot(last)
	}
	// Given-name-first order: family name is the final token.
	return last + ", " + initialDot(fields[0])
}

// isInitials reports whether a token looks like bare initials ("J", "JA").
func isInitials(tok string) bool {
	if len(tok) == 0 || len(tok) > 2 {
		return false
	}
	for _, r := range tok {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// initialDot renders a token as period-terminated initials. Bare initials
// ("MA") expand letter by letter to "M. A."; a full given name reduces to
// its first letter, which may be a multi-byte rune ("Ángel" to "Á.").
func initialDot(tok string) string {
	if isInitials(tok) {
		parts := make([]string, 0, len(tok))
		for _, r := range tok {
			parts = append(parts, string(r)+".")
		}
		return strings.Join(parts, " ")
	}
	r, _ := utf8.DecodeRuneInString(tok)
	return string(r) + "."
}

// terminated appends a period unless the text already ends with terminal
// punctuation.
func terminated(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}
