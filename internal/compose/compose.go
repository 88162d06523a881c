package compose

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourorg/release-tracker/internal/release"
)

// MessageLimit is Telegram's hard limit for one message
const MessageLimit = 4096

// Options for composing messages
type Options struct {
	Limit           int    // runes per part
	MaxParts        int    // parts before overflowing to the publisher
	TimeZone        string // for the date line
	Label           string // header suffix, "Released"
	TranslatedLabel string // header suffix of the translation section
}

// Input data for composing a message
type Input struct {
	Title       string // project display name
	Release     release.Release
	Translation string // optional, markdown
	AuthorName  string
	AuthorURL   string
}

// Rendered is the transport-ready form of one announcement
type Rendered struct {
	Parts       []string
	OverflowURL string
	Truncated   bool
}

// Page is long-form content handed to a Publisher
type Page struct {
	Title       string
	Markdown    string
	Translation string
	AuthorName  string
	AuthorURL   string
}

// Publisher hosts content that does not fit in the part budget
type Publisher interface {
	Publish(ctx context.Context, page Page) (url string, err error)
}

// Formatter fits a release into message parts
type Formatter struct {
	opts      Options
	loc       *time.Location
	publisher Publisher
	log       *slog.Logger
}

// NewFormatter creates a formatter. publisher may be nil, in which case
// oversized content is truncated.
func NewFormatter(opts Options, publisher Publisher, log *slog.Logger) *Formatter {
	if opts.Limit <= 0 || opts.Limit > MessageLimit {
		opts.Limit = MessageLimit
	}
	if opts.MaxParts <= 0 {
		opts.MaxParts = 4
	}
	if opts.Label == "" {
		opts.Label = "Released"
	}
	if opts.TranslatedLabel == "" {
		opts.TranslatedLabel = opts.Label
	}
	if log == nil {
		log = slog.Default()
	}

	loc, _ := time.LoadLocation(opts.TimeZone)
	if loc == nil {
		loc = time.UTC
	}

	return &Formatter{opts: opts, loc: loc, publisher: publisher, log: log}
}

// Render never fails: oversized content is published or truncated
func (f *Formatter) Render(ctx context.Context, in Input) Rendered {
	header := f.header(in, f.opts.Label)
	body := MarkdownToHTML(in.Release.Body)
	translated := ""
	if strings.TrimSpace(in.Translation) != "" {
		translated = MarkdownToHTML(in.Translation)
	}

	combined := joinBlocks(header, body, translated)
	if runeLen(combined) <= f.opts.Limit {
		return Rendered{Parts: []string{combined}}
	}

	parts, ok := Split(joinBlocks(header, body), f.opts.Limit)
	if ok && translated != "" {
		var more []string
		more, ok = Split(joinBlocks(f.header(in, f.opts.TranslatedLabel), translated), f.opts.Limit)
		parts = append(parts, more...)
	}
	if ok && len(parts) <= f.opts.MaxParts {
		return Rendered{Parts: parts}
	}

	url, err := f.publish(ctx, in)
	if err == nil {
		link := fmt.Sprintf(`<a href="%s">View full changelog</a>`, html.EscapeString(url))
		return Rendered{Parts: []string{joinBlocks(header, link)}, OverflowURL: url}
	}
	if f.publisher != nil {
		f.log.Warn("Failed to publish long-form content, truncating", "error", err)
	}

	return Rendered{Parts: []string{f.truncate(header, body, translated, in.Release.URL)}, Truncated: true}
}

func (f *Formatter) publish(ctx context.Context, in Input) (string, error) {
	if f.publisher == nil {
		return "", fmt.Errorf("no publisher configured")
	}
	title := strings.TrimSpace(in.Title + " " + in.Release.DisplayName() + " Release Notes")
	return f.publisher.Publish(ctx, Page{
		Title:       title,
		Markdown:    in.Release.Body,
		Translation: in.Translation,
		AuthorName:  in.AuthorName,
		AuthorURL:   in.AuthorURL,
	})
}

func (f *Formatter) header(in Input, label string) string {
	r := in.Release
	version := html.EscapeString(r.DisplayName())
	if r.URL != "" {
		version = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(r.URL), version)
	}

	var sb strings.Builder
	sb.WriteString("<b>")
	if in.Title != "" {
		sb.WriteString(html.EscapeString(in.Title))
		sb.WriteString(" ")
	}
	sb.WriteString(version)
	sb.WriteString(" ")
	sb.WriteString(html.EscapeString(label))
	sb.WriteString("</b>")

	if r.HasPublishedAt() {
		sb.WriteString("\n📅 ")
		sb.WriteString(r.PublishedAt.In(f.loc).Format("2006-01-02 15:04"))
	}
	return sb.String()
}

// truncate keeps whole body lines that fit together with the omission marker
func (f *Formatter) truncate(header, body, translated, url string) string {
	total := runeLen(body)
	if translated != "" {
		total += runeLen(translated)
	}

	var kept []string
	keptLen := 0
	for _, line := range splitOutsidePre(body, "\n") {
		candidate := append(append([]string{}, kept...), line)
		text := joinBlocks(header, strings.Join(candidate, "\n"), marker(total-keptLen-runeLen(line)-1, url))
		if runeLen(text) > f.opts.Limit {
			break
		}
		kept = candidate
		keptLen += runeLen(line) + 1
	}

	omitted := total - keptLen
	if omitted < 0 {
		omitted = 0
	}
	msg := joinBlocks(header, strings.Join(kept, "\n"), marker(omitted, url))
	if runeLen(msg) > f.opts.Limit {
		// header alone is too long; cut it by runes and drop the markup
		return truncateRunes(stripTags(msg), f.opts.Limit)
	}
	return msg
}

func marker(omitted int, url string) string {
	if omitted < 0 {
		omitted = 0
	}
	m := fmt.Sprintf("<i>… content omitted (%d characters)</i>", omitted)
	if url != "" {
		m += fmt.Sprintf("\n%s", html.EscapeString(url))
	}
	return m
}

// joinBlocks joins the non-empty blocks with a blank line
func joinBlocks(blocks ...string) string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			out = append(out, b)
		}
	}
	return strings.Join(out, "\n\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
