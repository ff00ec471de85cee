package services

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining diacritical marks, so "Müller" and "Muller"
// normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName strips diacritics, uppercases and token-sorts a name so that
// "Müller, Hans" and "HANS MULLER" compare equal.
func normalizeName(name string) string {
	stripped, _, err := transform.String(stripMarks, name)
	if err != nil {
		stripped = name
	}

	folded := strings.ToUpper(stripped)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// nameMatchScore scores the similarity of two names on a 0..100 scale, 100
// being an exact match after normalization. The score is derived from the
// Levenshtein distance of the normalized forms.
func nameMatchScore(a, b string) int {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	distance := levenshtein(na, nb)
	if distance >= longest {
		return 0
	}
	return (longest - distance) * 100 / longest
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
