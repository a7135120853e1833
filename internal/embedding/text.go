package embedding

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EstimateTokens gives a rough token count: rune count divided by 2 is a
// conservative estimate that works for both English (~4 chars/token) and
// CJK (~1.5 chars/token) text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

// Normalize collapses all whitespace runs to single spaces and trims the
// ends, so formatting differences never produce distinct cache keys.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TruncateToTokens cuts text to at most budget estimated tokens, always at a
// word boundary. A single word longer than the whole budget is cut hard,
// since there is no boundary to respect.
func TruncateToTokens(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	maxRunes := budget * 2
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	// Find the byte offset of the maxRunes-th rune.
	cut := len(text)
	count := 0
	for i := range text {
		if count == maxRunes {
			cut = i
			break
		}
		count++
	}

	// Back up to the last whitespace before the cut.
	boundary := strings.LastIndexFunc(text[:cut], unicode.IsSpace)
	if boundary > 0 {
		cut = boundary
	}
	return strings.TrimRightFunc(text[:cut], unicode.IsSpace)
}
