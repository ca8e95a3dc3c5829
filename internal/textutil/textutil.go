// Package textutil holds the word and sentence helpers shared by extraction, validation and summarization.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CountWords returns the number of whitespace separated words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Collapse joins all whitespace runs into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateWords keeps at most max words of s.
func TruncateWords(s string, max int) string {
	words := strings.Fields(s)
	if max <= 0 || len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ")
}

// TruncateRunes cuts s to at most max runes, preferring to end on a sentence boundary
// found in the second half of the cut.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max])
	if idx := strings.LastIndex(cut, ". "); idx > len(cut)/2 {
		return cut[:idx+1]
	}
	return cut
}

// Sentences splits s on sentence-ending punctuation followed by whitespace.
func Sentences(s string) []string {
	s = Collapse(s)
	if s == "" {
		return nil
	}

	var (
		out   []string
		start int
	)
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// IsAlphaWord reports whether w consists of letters only.
func IsAlphaWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// TrimPunct strips leading and trailing punctuation from a token.
func TrimPunct(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
