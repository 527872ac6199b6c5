package validators

import (
	"strings"
	"unicode/utf8"
)

// SearchTerm normalizes free-text query input. Runs of whitespace collapse to
// one space and the result is cut to maxRunes characters without splitting a
// multi-byte character. A non-positive maxRunes disables the cut.
func SearchTerm(input string, maxRunes int) string {
	term := strings.Join(strings.Fields(input), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(term) <= maxRunes {
		return term
	}
	runes := []rune(term)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
