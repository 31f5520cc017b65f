// Package textutil normalizes user-facing text for matching and URLs.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// vietnamese d with stroke has no decomposition
var strokeReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

// Fold lower-cases s and strips diacritics so "Cà Phê Sữa Đá" matches "ca phe sua da".
func Fold(s string) string {
	s = strokeReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Slugify folds s and joins its alphanumeric runs with '-'.
func Slugify(s string) string {
	folded := Fold(s)
	var b strings.Builder
	dash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ContainsFolded reports whether every whitespace separated term of query occurs in the
// folded haystack.
func ContainsFolded(haystack, query string) bool {
	terms := strings.Fields(Fold(query))
	if len(terms) == 0 {
		return true
	}
	h := Fold(haystack)
	for _, term := range terms {
		if !strings.Contains(h, term) {
			return false
		}
	}
	return true
}

// SearchKey builds the folded text stored alongside a document for prefix/contains search.
func SearchKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := Fold(p); f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
