package telegraph

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is a Telegraph content node: either a string or an *Element
type Node any

// Element is a Telegraph DOM element
type Element struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// allowedTags lists the tags the Telegraph API accepts
var allowedTags = map[string]bool{
	"a": true, "aside": true, "b": true, "blockquote": true, "br": true, "code": true,
	"em": true, "figcaption": true, "figure": true, "h3": true, "h4": true, "hr": true,
	"i": true, "iframe": true, "img": true, "li": true, "ol": true, "p": true, "pre": true,
	"s": true, "strong": true, "u": true, "ul": true, "video": true,
}

var renamedTags = map[string]string{
	"h1": "h3", "h2": "h3", "h5": "h4", "h6": "h4", "del": "s",
}

// pageNodes renders the notes and an optional translation separated by a rule
func pageNodes(md, translation string) ([]Node, error) {
	nodes, err := MarkdownToNodes(md)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(translation) == "" {
		return nodes, nil
	}

	more, err := MarkdownToNodes(translation)
	if err != nil {
		return nil, err
	}
	nodes = append(nodes, &Element{Tag: "hr"})
	return append(nodes, more...), nil
}

// MarkdownToNodes converts markdown into Telegraph nodes via goldmark HTML
func MarkdownToNodes(md string) ([]Node, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return HTMLToNodes(buf.String())
}

// HTMLToNodes converts an HTML fragment into Telegraph nodes. Unsupported
// tags are unwrapped and their children kept.
func HTMLToNodes(fragment string) ([]Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var out []Node
	for _, n := range parsed {
		out = append(out, convert(n)...)
	}
	return out, nil
}

func convert(n *html.Node) []Node {
	switch n.Type {
	case html.TextNode:
		// whitespace between blocks
		if strings.TrimSpace(n.Data) == "" && strings.Contains(n.Data, "\n") {
			return nil
		}
		return []Node{n.Data}
	case html.ElementNode:
	default:
		return nil
	}

	var children []Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, convert(c)...)
	}

	tag := n.Data
	if renamed, ok := renamedTags[tag]; ok {
		tag = renamed
	}
	if !allowedTags[tag] {
		return children
	}

	el := &Element{Tag: tag, Children: children}
	for _, a := range n.Attr {
		if a.Key == "href" || a.Key == "src" {
			if el.Attrs == nil {
				el.Attrs = map[string]string{}
			}
			el.Attrs[a.Key] = a.Val
		}
	}
	return []Node{el}
}
