package source

import (
	"regexp"
	"strings"
)

type replacement struct {
	re   *regexp.Regexp
	with string
}

// prListHeadingRe matches a merged-PR list heading; it and everything after it is dropped.
var prListHeadingRe = regexp.MustCompile(`(?im)^[-#*\s]*(?:full list of merged prs|merged prs|all merged prs|list of merged prs|prs merged|prs)\s*:?\s*\**\s*$`)

var cleanRules = []replacement{
	// Full Changelog lines
	{regexp.MustCompile(`(?i)\*{0,2}full changelog\*{0,2}:?.*`), ""},
	// PR list lines in their common shapes
	{regexp.MustCompile(`(?m)^[-*]\s+.*(?:by @|— @).*#\d+.*$`), ""},
	{regexp.MustCompile(`(?m)^[-*]\s+.*\(#\d+\)\s*—\s*@.*$`), ""},
	{regexp.MustCompile(`(?m)^#\d+\s+[–—-]\s+.*$`), ""},
	{regexp.MustCompile(`(?m)^[-*]\s+PR\s*$`), ""},
	// pull request and issue links
	{regexp.MustCompile(`https://github\.com/[\w.-]+/[\w.-]+/(?:pull|issues)/\d+`), ""},
	// inline references such as (#6189) or #6222 #6189
	{regexp.MustCompile(`\s*\(#\d+(?:\s+#\d+)*\)`), ""},
	{regexp.MustCompile(`(^|[\s(,])#\d+(?:\s+#\d+)*`), "$1"},
	// leftovers of removed references
	{regexp.MustCompile(`See\s+for details\.?`), ""},
	{regexp.MustCompile(`\([\s,]*\)`), ""},
	{regexp.MustCompile(`(?m)[ \t]+in[ \t]*$`), ""},
	{regexp.MustCompile(`(?m),[ \t]*$`), ""},
	{regexp.MustCompile(`\.{2,}`), "."},
	{regexp.MustCompile(`(?m)^\s*\.\s*$`), ""},
	// normalize bullets
	{regexp.MustCompile(`(?m)^\*\s+`), "- "},
	{regexp.MustCompile(`(?m)^-\s{2,}`), "- "},
	{regexp.MustCompile(`[^\S\n]{2,}`), " "},
	{regexp.MustCompile(`(?m)[ \t]+$`), ""},
}

// CleanBody removes pull-request noise from GitHub release notes
func CleanBody(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	clean := strings.ReplaceAll(body, "\r\n", "\n")
	if loc := prListHeadingRe.FindStringIndex(clean); loc != nil {
		clean = clean[:loc[0]]
	}

	for _, r := range cleanRules {
		clean = r.re.ReplaceAllString(clean, r.with)
	}

	clean = blankLinesRe.ReplaceAllString(clean, "\n\n")
	clean = collapseListGaps(clean)

	return strings.TrimSpace(clean)
}

// collapseListGaps removes blank lines between consecutive list items
func collapseListGaps(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if line == "" && len(out) > 0 && strings.HasPrefix(out[len(out)-1], "- ") &&
			i+1 < len(lines) && strings.HasPrefix(lines[i+1], "- ") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
