package normalize

import (
	"strings"
	"unicode"
)

// Text canonicalizes a message body for content hashing.
//
// The result is lower-cased, keeps only letters, digits and single spaces
// (Unicode classes, so non-Latin scripts survive) and has no leading or
// trailing space. Text(Text(s)) == Text(s) for every s.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
		// anything else is dropped without touching pendingSpace
	}
	return b.String()
}

// Compact is the legacy repost form: lower-cased with all whitespace removed.
// Punctuation is kept.
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
}
