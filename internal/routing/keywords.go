package routing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pattern keys looked up in the keyword directory.
const (
	PatternPriceLock        = "price_lock"
	PatternDealCancellation = "deal_cancellation"
	PatternDealRejection    = "deal_rejection"
)

// Synonyms always accepted in addition to the configured lists.
var (
	extraLockKeywords      = []string{"ok", "fecha"}
	extraRejectionKeywords = []string{"off"}
)

// MatchesKeyword reports whether text equals one of keywords or contains one
// as a whole word. Comparison is case-insensitive; "lock" does not match
// "blocked" and "cancela" does not match "cancelação".
func MatchesKeyword(text string, keywords []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if normalized == kw || containsWord(normalized, kw) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if boundaryBefore(s, start, word) && boundaryAfter(s, end, word) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

// A boundary exists between a word and a non-word rune, so keywords that
// begin or end with punctuation only need the surrounding rune to differ in kind.
func boundaryBefore(s string, start int, word string) bool {
	first, _ := utf8.DecodeRuneInString(word)
	if start == 0 {
		return isWordRune(first)
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:start])
	return isWordRune(prev) != isWordRune(first)
}

func boundaryAfter(s string, end int, word string) bool {
	last, _ := utf8.DecodeLastRuneInString(word)
	if end == len(s) {
		return isWordRune(last)
	}
	next, _ := utf8.DecodeRuneInString(s[end:])
	return isWordRune(next) != isWordRune(last)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func withExtras(configured, extras []string) []string {
	out := make([]string, 0, len(configured)+len(extras))
	out = append(out, configured...)
	return append(out, extras...)
}
