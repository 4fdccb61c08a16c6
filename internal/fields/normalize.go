package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'", "´", "'")

// Normalize lowercases, strips diacritics, unifies apostrophes and collapses
// whitespace. All matching in this package runs on normalized text.
func Normalize(raw string) string {
	s := apostrophes.Replace(strings.ToLower(raw))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokens splits normalized text into words, treating punctuation as separators.
func tokens(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	})
}

// containsPhrase reports whether phrase appears in normalized on word boundaries.
func containsPhrase(normalized, phrase string) bool {
	padded := " " + strings.Join(tokens(normalized), " ") + " "
	return strings.Contains(padded, " "+phrase+" ")
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
