package source

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t\r\n]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	bulletGapRe  = regexp.MustCompile(`^-\s{2,}`)
)

// HTMLToText converts release-note HTML (as found in Atom entries) into the
// markdown-ish text the rest of the pipeline works with: list items become
// "- " lines, headings become "## " lines, inline code keeps its backticks.
func HTMLToText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		writeSelection(&b, s)
	})

	return tidyText(b.String()), nil
}

func writeSelection(b *strings.Builder, s *goquery.Selection) {
	if len(s.Nodes) == 0 {
		return
	}
	node := s.Nodes[0]

	name := goquery.NodeName(s)
	switch name {
	case "#text":
		b.WriteString(spaceRunRe.ReplaceAllString(node.Data, " "))
		return
	case "#comment":
		return
	case "br":
		b.WriteString("\n")
		return
	case "h1", "h2", "h3", "h4", "h5", "h6":
		b.WriteString("\n\n## ")
		b.WriteString(strings.TrimSpace(spaceRunRe.ReplaceAllString(s.Text(), " ")))
		b.WriteString("\n")
		return
	case "pre":
		b.WriteString("\n```\n")
		b.WriteString(strings.Trim(s.Text(), "\n"))
		b.WriteString("\n```\n")
		return
	case "code":
		b.WriteString("`")
		b.WriteString(s.Text())
		b.WriteString("`")
		return
	case "li":
		b.WriteString("\n- ")
	case "p", "div", "blockquote":
		if goquery.NodeName(s.Parent()) == "li" {
			break
		}
		b.WriteString("\n\n")
	case "strong", "b":
		b.WriteString("**")
	}

	s.Contents().Each(func(_ int, child *goquery.Selection) {
		writeSelection(b, child)
	})

	switch name {
	case "ul", "ol", "p", "div", "blockquote":
		if goquery.NodeName(s.Parent()) == "li" && name != "ul" && name != "ol" {
			break
		}
		b.WriteString("\n")
	case "strong", "b":
		b.WriteString("**")
	}
}

// tidyText trims each line outside code fences and squashes blank runs
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			lines[i] = strings.TrimSpace(line)
			continue
		}
		if inFence {
			lines[i] = strings.TrimRight(line, " \t")
			continue
		}
		lines[i] = bulletGapRe.ReplaceAllString(strings.TrimSpace(line), "- ")
	}
	out := strings.Join(lines, "\n")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
