package metadata

import (
	"strings"
	"unicode"
)

// NormalizeHashtag turns a trending hashtag into a search phrase:
// "#NeerajChopra" -> "Neeraj Chopra", "#BCCIUpdates" -> "BCCI Updates".
// Single-letter fragments are dropped. Plain phrases pass through trimmed.
func NormalizeHashtag(tag string) string {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if raw == "" {
		return ""
	}

	var words []string
	for _, chunk := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	}) {
		for _, w := range splitCamel(chunk) {
			if len([]rune(w)) > 1 {
				words = append(words, w)
			}
		}
	}
	if len(words) == 0 {
		return raw
	}
	return strings.Join(words, " ")
}

// Hashtag builds "#Word" style tags from a phrase.
func Hashtag(phrase string) string {
	var b strings.Builder
	for _, w := range strings.Fields(phrase) {
		runes := []rune(w)
		keep := runes[:0]
		for _, r := range runes {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				keep = append(keep, r)
			}
		}
		if len(keep) == 0 {
			continue
		}
		keep[0] = unicode.ToUpper(keep[0])
		b.WriteString(string(keep))
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

// splitCamel cuts at lower->upper, letter<->digit, and before the last capital
// of an acronym that runs into a word ("BCCIUpdates" -> "BCCI", "Updates").
func splitCamel(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsLetter(prev) && unicode.IsDigit(cur), unicode.IsDigit(prev) && unicode.IsLetter(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}
