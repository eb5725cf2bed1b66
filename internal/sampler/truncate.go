package sampler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateWords cuts s so that the result, including suffix, is at most
// limit bytes. The cut always lands on whitespace; a leading token longer
// than the budget is dropped whole and the result is empty. Trailing
// whitespace is dropped before the suffix is appended. s is returned
// unchanged when it already fits.
func TruncateWords(s string, limit int, suffix string) string {
	if len(s) <= limit {
		return s
	}
	keep := limit - len(suffix)
	if keep <= 0 {
		return ""
	}

	cut := runeBoundary(s, keep)
	// s[cut] starting with whitespace means the cut already falls between words
	if cut < len(s) && !startsWithSpace(s[cut:]) {
		cut = max(strings.LastIndexFunc(s[:cut], unicode.IsSpace), 0)
	}
	out := strings.TrimRightFunc(s[:cut], unicode.IsSpace)
	if out == "" {
		return ""
	}
	return out + suffix
}

// runeBoundary returns the largest index <= n that starts a rune
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
