package compose

import (
	"reflect"
	"testing"
)

func TestMarkdownToHTML(t *testing.T) {
	md := "## New\n\n- Use `a<b>` now\n* **bold** [link](https://x.y/?a=1&b=2)\n1.2.3\n```\nx < y\n```"
	want := "<b>New</b>\n\n" +
		"• Use <code>a&lt;b&gt;</code> now\n" +
		`• <b>bold</b> <a href="https://x.y/?a=1&amp;b=2">link</a>` + "\n" +
		"<pre>x &lt; y</pre>"

	if got := MarkdownToHTML(md); got != want {
		t.Errorf("MarkdownToHTML() =\n%q\nwant\n%q", got, want)
	}
}

func TestSplit(t *testing.T) {
	got, ok := Split("aa\n\nbb\n\ncc", 6)
	if !ok || !reflect.DeepEqual(got, []string{"aa\n\nbb", "cc"}) {
		t.Errorf("Split = %q, %v", got, ok)
	}

	if _, ok := Split("short\n\n"+"toolongparagraph", 8); ok {
		t.Error("expected oversized paragraph to be reported")
	}
}

func TestSplitOutsidePre(t *testing.T) {
	got := splitOutsidePre("<pre>a\n\nb</pre>\n\nc", "\n\n")
	want := []string{"<pre>a\n\nb</pre>", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitOutsidePre = %q, want %q", got, want)
	}
}
