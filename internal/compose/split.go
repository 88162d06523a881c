package compose

import (
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Split cuts text into parts of at most limit runes at blank-line
// boundaries. It reports false when a single paragraph exceeds the limit.
func Split(text string, limit int) ([]string, bool) {
	if runeLen(text) <= limit {
		return []string{text}, true
	}

	var (
		parts   []string
		current string
	)
	for _, para := range splitOutsidePre(text, "\n\n") {
		if runeLen(para) > limit {
			return nil, false
		}
		if current == "" {
			current = para
			continue
		}
		if runeLen(current)+2+runeLen(para) <= limit {
			current += "\n\n" + para
			continue
		}
		parts = append(parts, current)
		current = para
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts, true
}

// splitOutsidePre splits on sep without cutting through a <pre> block
func splitOutsidePre(s, sep string) []string {
	raw := strings.Split(s, sep)
	out := make([]string, 0, len(raw))

	var pending []string
	open := 0
	for _, piece := range raw {
		pending = append(pending, piece)
		open += strings.Count(piece, "<pre>") - strings.Count(piece, "</pre>")
		if open > 0 {
			continue
		}
		open = 0
		out = append(out, strings.Join(pending, sep))
		pending = pending[:0]
	}
	if len(pending) > 0 {
		out = append(out, strings.Join(pending, sep))
	}
	return out
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
