package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/yourorg/release-tracker/internal/release"
)

// Atom is a source backed by a syndication feed such as GitHub's releases.atom.
// Entries keep feed order, which GitHub publishes newest first.
type Atom struct {
	fetcher *Fetcher
	url     string
	filter  Filter
	cleaner func(string) string

	// verify against the releases API when set
	github *GitHub
	repo   string
}

// NewAtom creates a feed source
func NewAtom(fetcher *Fetcher, feedURL string, filter Filter, clean bool) *Atom {
	a := &Atom{fetcher: fetcher, url: feedURL, filter: filter}
	if clean {
		a.cleaner = CleanBody
	}
	return a
}

// WithVerification makes the source drop entries that GitHub does not
// report as a stable published release of repo.
func (a *Atom) WithVerification(client *GitHub, repo string) *Atom {
	a.github = client
	a.repo = repo
	return a
}

// Fetch implements the source contract
func (a *Atom) Fetch(ctx context.Context) ([]release.Release, error) {
	body, err := a.fetcher.Get(ctx, a.url)
	if err != nil {
		return nil, err
	}

	all, err := ParseAtom(string(body), a.cleaner)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: feed %s has no entries", release.ErrParseFailed, a.url)
	}

	kept := a.filter.Apply(all)
	if a.github == nil {
		return kept, nil
	}

	verified := make([]release.Release, 0, len(kept))
	for _, r := range kept {
		gh, status, err := a.github.ReleaseByTag(ctx, a.repo, r.Identifier)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", r.Identifier, err)
		}
		if status != TagStable {
			continue
		}
		if r.URL == "" {
			r.URL = gh.HTMLURL
		}
		verified = append(verified, r)
	}
	return verified, nil
}

// ParseAtom converts feed entries into releases in feed order.
// cleaner, when non-nil, is applied to each converted body.
func ParseAtom(doc string, cleaner func(string) string) ([]release.Release, error) {
	feed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", release.ErrParseFailed, err)
	}

	out := make([]release.Release, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := tagFromLink(item.Link)
		if id == "" {
			id = strings.TrimSpace(item.Title)
		}
		if id == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		text, err := HTMLToText(content)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", release.ErrParseFailed, id, err)
		}
		if cleaner != nil {
			text = cleaner(text)
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = id
		}

		out = append(out, release.Release{
			Identifier:  id,
			Title:       title,
			Body:        text,
			URL:         item.Link,
			PublishedAt: entryTime(item),
		})
	}
	return out, nil
}

// tagFromLink returns the last path segment of a release link,
// e.g. ".../releases/tag/rust-v0.1.0" yields "rust-v0.1.0".
func tagFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		return unescaped
	}
	return seg
}

func entryTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
