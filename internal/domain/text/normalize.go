// Package text normalizes Portuguese food and condition names for matching.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips diacritics and collapses whitespace:
// "  Feijão   Preto " becomes "feijao preto".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// ContainsAny reports whether the normalized haystack contains any of the
// normalized needles.
func ContainsAny(haystack string, needles ...string) bool {
	h := Normalize(haystack)
	for _, n := range needles {
		if n = Normalize(n); n != "" && strings.Contains(h, n) {
			return true
		}
	}
	return false
}

// Matches reports whether a and b name the same thing loosely: either
// normalized string contains the other.
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
