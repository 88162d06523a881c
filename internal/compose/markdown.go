package compose

import (
	"html"
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	bulletRe      = regexp.MustCompile(`^(\s*)[-*•]\s+(.+)$`)
	versionLineRe = regexp.MustCompile(`^v?\d+\.\d+\.\d+\S*\s*$`)
	codeSpanRe    = regexp.MustCompile("`([^`]+)`")
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	boldStarRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderRe   = regexp.MustCompile(`__(.+?)__`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// MarkdownToHTML converts release-note markdown into Telegram HTML.
// Headings become bold lines, bullets become "•", bare version lines are
// dropped and everything else is escaped.
func MarkdownToHTML(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	inFence := false
	var fence []string

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				out = append(out, "<pre>"+html.EscapeString(strings.Join(fence, "\n"))+"</pre>")
				fence = fence[:0]
			}
			inFence = !inFence
			continue
		}
		if inFence {
			fence = append(fence, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case versionLineRe.MatchString(trimmed):
			continue
		case headingRe.MatchString(trimmed):
			m := headingRe.FindStringSubmatch(trimmed)
			out = append(out, "<b>"+inline(strings.Trim(m[1], "* "))+"</b>")
		case bulletRe.MatchString(line):
			m := bulletRe.FindStringSubmatch(line)
			indent := strings.Repeat(" ", len(strings.ReplaceAll(m[1], "\t", "  ")))
			out = append(out, indent+"• "+inline(m[2]))
		default:
			out = append(out, inline(trimmed))
		}
	}
	// unterminated fence
	if inFence && len(fence) > 0 {
		out = append(out, "<pre>"+html.EscapeString(strings.Join(fence, "\n"))+"</pre>")
	}

	result := strings.Join(out, "\n")
	result = blankRunRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// inline escapes a line and converts code spans, links and bold text
func inline(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range codeSpanRe.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(inlineText(s[last:loc[0]]))
		b.WriteString("<code>")
		b.WriteString(html.EscapeString(s[loc[2]:loc[3]]))
		b.WriteString("</code>")
		last = loc[1]
	}
	b.WriteString(inlineText(s[last:]))
	return b.String()
}

func inlineText(s string) string {
	s = html.EscapeString(s)
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = boldStarRe.ReplaceAllString(s, "<b>$1</b>")
	s = boldUnderRe.ReplaceAllString(s, "<b>$1</b>")
	return s
}
